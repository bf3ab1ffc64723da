package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"nixstrap/internal/logger"

	"github.com/melbahja/goph"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const DefaultTimeout = 10 * time.Second

// Dialer opens the TCP connection under a Session. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Option func(*Session)

// WithTimeout bounds each dial and handshake.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.timeout = d
	}
}

func WithDialer(d Dialer) Option {
	return func(s *Session) {
		s.dialer = d
	}
}

// Session owns one transport to a single endpoint and moves through
// Disconnected, Connected and Authenticated. Reconnect swaps the transport
// in place so the endpoint identity survives a remote reboot.
//
// Connect only captures the host key; it makes no trust decision. Callers
// reconcile the key against their known hosts store before Authenticate.
type Session struct {
	mu       sync.Mutex
	endpoint Endpoint
	timeout  time.Duration
	dialer   Dialer

	state   State
	failure error
	hostKey ssh.PublicKey
	user    string
	cred    Credential

	client *goph.Client
	sftp   *sftp.Client
}

func NewSession(endpoint Endpoint, opts ...Option) *Session {
	s := &Session{
		endpoint: endpoint,
		timeout:  DefaultTimeout,
		state:    StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dialer == nil {
		s.dialer = &net.Dialer{Timeout: s.timeout}
	}
	return s
}

// FormatPublicKey renders key in OpenSSH authorized-keys form without a
// trailing newline.
func FormatPublicKey(key ssh.PublicKey) string {
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
}

func (s *Session) Endpoint() Endpoint {
	return s.endpoint
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failure returns the error that moved the session to StateFailed.
func (s *Session) Failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// HostKey returns the last host key seen by Connect or Reconnect in OpenSSH text form.
func (s *Session) HostKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hostKey == nil {
		return ""
	}
	return FormatPublicKey(s.hostKey)
}

func (s *Session) HostPublicKey() ssh.PublicKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostKey
}

func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Connect performs a handshake with the endpoint and records its host key.
// It returns the key in OpenSSH text form.
func (s *Session) Connect(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAuthenticated {
		return "", fmt.Errorf("%w: session is authenticated, use Reconnect", ErrInvalidState)
	}

	key, err := s.probe(ctx)
	if err != nil {
		s.fail(err)
		return "", err
	}

	s.hostKey = key
	s.state = StateConnected
	s.failure = nil

	logger.Debug("Connected to %s, host key %s", s.endpoint, ssh.FingerprintSHA256(key))
	return FormatPublicKey(key), nil
}

// Authenticate opens the transport as user with exactly one credential. A
// rejected credential returns ErrAuth and leaves the session Connected so a
// different credential can be tried.
func (s *Session) Authenticate(ctx context.Context, user string, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return fmt.Errorf("%w: authenticate requires %s, session is %s", ErrInvalidState, StateConnected, s.state)
	}
	if cred == nil {
		return ErrNoCredential
	}

	client, err := s.open(ctx, user, cred, s.hostKey)
	if err != nil {
		if errors.Is(err, ErrAuth) {
			logger.Warn("Authentication as %s on %s with %s credential rejected", user, s.endpoint, cred.Kind())
			return err
		}
		s.fail(err)
		return err
	}

	s.client = client
	s.user = user
	s.cred = cred
	s.state = StateAuthenticated

	logger.Info("Authenticated as %s on %s using %s", user, s.endpoint, cred.Kind())
	return nil
}

// Reconnect re-runs Connect and Authenticate into a new transport. An empty
// user or nil cred reuses the previous ones. The old transport is closed
// only once the new one is authenticated; on failure it is kept and the
// session is marked Failed. Returns the host key presented by the new
// transport, which may differ from the previous one.
func (s *Session) Reconnect(ctx context.Context, user string, cred Credential) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user == "" {
		user = s.user
	}
	if cred == nil {
		cred = s.cred
	}
	if user == "" || cred == nil {
		return "", fmt.Errorf("%w: reconnect needs a user and credential", ErrNoCredential)
	}

	key, err := s.probe(ctx)
	if err != nil {
		s.fail(err)
		return "", err
	}

	client, err := s.open(ctx, user, cred, key)
	if err != nil {
		s.fail(err)
		return "", err
	}

	oldClient, oldSftp := s.client, s.sftp

	s.client = client
	s.sftp = nil
	s.hostKey = key
	s.user = user
	s.cred = cred
	s.state = StateAuthenticated
	s.failure = nil

	if oldSftp != nil {
		oldSftp.Close()
	}
	if oldClient != nil {
		oldClient.Close()
	}

	logger.Info("Reconnected to %s as %s", s.endpoint, user)
	return FormatPublicKey(key), nil
}

// Close drops the transport. The session can be connected again afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.sftp != nil {
		s.sftp.Close()
		s.sftp = nil
	}
	if s.client != nil {
		err = s.client.Close()
		s.client = nil
	}
	s.state = StateDisconnected
	s.failure = nil
	return err
}

// fail must be called with mu held.
func (s *Session) fail(err error) {
	s.state = StateFailed
	s.failure = err
	logger.Debug("Session to %s failed: %v", s.endpoint, err)
}

func (s *Session) authenticatedClient() (*goph.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated || s.client == nil {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, s.state)
	}
	return s.client, nil
}

// transportFailure marks the session Failed and returns err wrapped in ErrTransport.
func (s *Session) transportFailure(err error) error {
	wrapped := fmt.Errorf("%w: %v", ErrTransport, err)
	s.mu.Lock()
	s.fail(wrapped)
	s.mu.Unlock()
	return wrapped
}

func (s *Session) dial(ctx context.Context) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.dialer.DialContext(ctx, "tcp", s.endpoint.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, s.endpoint, err)
	}
	return conn, nil
}

// handshake runs the SSH handshake over conn. conn is closed on failure or
// when ctx is cancelled mid-handshake.
func (s *Session) handshake(ctx context.Context, conn net.Conn, config *ssh.ClientConfig) (*ssh.Client, error) {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	conn.SetDeadline(time.Now().Add(s.timeout))
	c, chans, reqs, err := ssh.NewClientConn(conn, s.endpoint.Address(), config)
	if !stop() {
		if err == nil {
			c.Close()
		}
		conn.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

// probe handshakes far enough to receive the host key, then aborts.
func (s *Session) probe(ctx context.Context) (ssh.PublicKey, error) {
	var captured ssh.PublicKey
	config := &ssh.ClientConfig{
		User: "nixstrap-probe",
		HostKeyCallback: func(_ string, _ net.Addr, key ssh.PublicKey) error {
			captured = key
			return errProbeFinished
		},
		Timeout: s.timeout,
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}

	client, err := s.handshake(ctx, conn, config)
	if client != nil {
		client.Close()
	}
	if captured != nil {
		return captured, nil
	}
	if err == nil {
		err = errors.New("handshake completed without a host key")
	}
	return nil, fmt.Errorf("%w: handshake with %s: %v", ErrTransport, s.endpoint, err)
}

// open dials an authenticated transport pinned to expected.
func (s *Session) open(ctx context.Context, user string, cred Credential, expected ssh.PublicKey) (*goph.Client, error) {
	auth, release, err := cred.auth()
	if err != nil {
		return nil, fmt.Errorf("%w: %s credential: %w", ErrAuth, cred.Kind(), err)
	}
	defer release()

	pinned := ssh.FixedHostKey(expected)
	keyChanged := false
	config := &ssh.ClientConfig{
		User: user,
		Auth: auth,
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			if err := pinned(hostname, remote, key); err != nil {
				keyChanged = true
				return ErrHostKeyChanged
			}
			return nil
		},
		Timeout: s.timeout,
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}

	client, err := s.handshake(ctx, conn, config)
	if err != nil {
		switch {
		case keyChanged:
			return nil, fmt.Errorf("%w: %s: %w", ErrTransport, s.endpoint, ErrHostKeyChanged)
		case isAuthFailure(err):
			return nil, fmt.Errorf("%w: %s@%s with %s credential: %v", ErrAuth, user, s.endpoint, cred.Kind(), err)
		default:
			return nil, fmt.Errorf("%w: handshake with %s: %v", ErrTransport, s.endpoint, err)
		}
	}

	return &goph.Client{Client: client}, nil
}

// x/crypto/ssh reports exhausted auth methods only through the error text.
func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain")
}
