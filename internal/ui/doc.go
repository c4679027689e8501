// Package ui provides the terminal output pieces of vpsinit: the banner,
// one spinner line per provisioning step, the closing summary and the
// hosts table.
//
// Styling goes through Lip Gloss. Call DisableColors for --no-color or
// when NO_COLOR is set; output written to a non-terminal is never
// animated, so logs and pipes get one line per step.
//
//	d := ui.NewStepDisplay(os.Stdout)
//	d.Start(1, 6, "Updating packages")
//	d.Succeed("updated with apt-get")
package ui
