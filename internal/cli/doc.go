// Package cli implements the vpsinit command line.
//
// The root command takes a single server address and runs the provisioning
// steps from internal/provision against it:
//
//	vpsinit <SERVER_IP>           - provision a fresh server
//	vpsinit hosts [--json]        - list the srvN aliases written so far
//	vpsinit verify <alias|IP>     - check that key login works
//	vpsinit config init|show      - create or print the config file
//	vpsinit version               - print build information
//
// Commands are built around an app value that carries the I/O streams, the
// SSH dial function and the secret prompter, so tests can drive the whole
// tree without a terminal or a network.
//
// Exit status is 0 only when every step succeeded and the verification
// connection worked.
package cli
