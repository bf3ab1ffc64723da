package bootstrap

import (
	"context"
	"os"

	"nixstrap/internal/runs/types"
	"nixstrap/internal/ssh"
)

// Session is the remote side of a bootstrap. *ssh.Session satisfies it.
type Session interface {
	Endpoint() ssh.Endpoint
	User() string
	Connect(ctx context.Context) (string, error)
	Authenticate(ctx context.Context, user string, cred ssh.Credential) error
	Reconnect(ctx context.Context, user string, cred ssh.Credential) (string, error)
	RunCommand(command string) (*ssh.CommandResult, error)
	DownloadFile(remotePath string) ([]byte, error)
	UploadTree(localDir, remoteDir string) error
	WriteFile(remotePath string, data []byte, mode os.FileMode) error
	Close() error
}

// Journal records runs. *runs.Repository satisfies it.
type Journal interface {
	Start(endpoint string, host string) (*types.Run, error)
	SetHost(runID string, host string) error
	RecordStep(runID string, name string, status types.StepStatus, detail string) (*types.Step, error)
	Finish(runID string, status types.RunStatus) error
}
