package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	ferrors "github.com/carriercomm/firelet/internal/errors"
)

// SSHDialer opens real SSH sessions to the fleet using an ssh-agent for
// authentication, mirroring the original implementation's one-shot
// pxssh-per-operation contract: no connection pooling, no session reuse.
type SSHDialer struct {
	// HostKeyCallback validates the remote host key. Defaults to
	// ssh.InsecureIgnoreHostKey if unset, matching the original tool's
	// lack of host key pinning (fleet nodes are provisioned, not
	// arbitrary hosts).
	HostKeyCallback ssh.HostKeyCallback
}

func (d *SSHDialer) Dial(ctx context.Context, hostname, address, username string) (Executor, error) {
	auth, err := agentAuth()
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindUnreachable, "ssh: no authentication method available")
	}

	hostKeyCallback := d.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	deadline, hasDeadline := ctx.Deadline()
	timeout := sessionTimeout
	if hasDeadline {
		timeout = time.Until(deadline)
	}

	cfg := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := address
	if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, "22")
	}

	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, ferrors.Wrapf(err, ferrors.KindUnreachable, "ssh: dial %s", addr)
	}
	return &SSHExecutor{client: client}, nil
}

func agentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connect to ssh-agent: %w", err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

// SSHExecutor is a single SSH session scoped to one fleet operation on
// one host. Each Run/SendBlock call opens its own ssh.Session, since a
// session can only execute one command before it must be closed.
type SSHExecutor struct {
	client *ssh.Client
}

func (e *SSHExecutor) Run(ctx context.Context, cmd string) ([]string, error) {
	session, err := e.client.NewSession()
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindUnreachable, "ssh: open session")
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	if err := session.Run(cmd); err != nil {
		return nil, ferrors.Wrapf(err, ferrors.KindUnreachable, "ssh: run %q", cmd)
	}
	text := strings.TrimRight(out.String(), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// SendBlock writes lines to path on the remote host by running
// "cat > path" with the block on standard input, the exec-session
// equivalent of the original implementation's "cat > path << EOF"
// here-document delivery.
func (e *SSHExecutor) SendBlock(ctx context.Context, path string, lines []string) error {
	session, err := e.client.NewSession()
	if err != nil {
		return ferrors.Wrap(err, ferrors.KindUnreachable, "ssh: open session")
	}
	defer session.Close()

	var body strings.Builder
	for _, l := range lines {
		body.WriteString(l)
		body.WriteByte('\n')
	}
	session.Stdin = strings.NewReader(body.String())

	cmd := fmt.Sprintf("cat > %s", path)
	if err := session.Run(cmd); err != nil {
		return ferrors.Wrapf(err, ferrors.KindUnreachable, "ssh: deliver to %s", path)
	}
	return nil
}

func (e *SSHExecutor) Close() error {
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	if err != nil {
		return ferrors.Wrap(err, ferrors.KindUnreachable, "ssh: close")
	}
	return nil
}
