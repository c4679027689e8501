package testing

// WithBinaries makes `command -v` succeed for each name.
func WithBinaries(client *MockClient, names ...string) {
	for _, name := range names {
		client.AddBinary(name)
	}
}

// FailCommand makes every command matching pattern exit with code and
// print stderr.
func FailCommand(client *MockClient, pattern string, code int, stderr ...string) {
	client.SetPatternResponse(pattern, CommandResponse{
		ExitCode: code,
		Stderr:   joinedOutput(stderr...),
	})
}

// RespondWith makes commands matching pattern succeed and print stdout.
func RespondWith(client *MockClient, pattern string, stdout ...string) {
	client.SetPatternResponse(pattern, CommandResponse{
		Stdout: joinedOutput(stdout...),
	})
}
