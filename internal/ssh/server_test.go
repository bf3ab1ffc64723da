package ssh

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

const (
	testUser     = "nixos"
	testPassword = "correct horse"
)

// testServer is an in-process SSH server that runs exec requests through
// sh -c and serves sftp from the local filesystem. Its host key can be
// rotated and it can be restarted on the same address to mimic a reboot.
type testServer struct {
	t *testing.T

	mu         sync.Mutex
	addr       string
	hostSigner ssh.Signer
	authorized []ssh.PublicKey
	listener   net.Listener
	conns      []net.Conn
	done       chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	srv := &testServer{t: t, hostSigner: newSigner(t)}
	srv.start("127.0.0.1:0")
	t.Cleanup(srv.stop)
	return srv
}

func newSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}

func (srv *testServer) endpoint() Endpoint {
	host, portStr, _ := net.SplitHostPort(srv.addr)
	port, _ := net.LookupPort("tcp", portStr)
	return Endpoint{Destination: host, Port: uint16(port)}
}

func (srv *testServer) hostKey() string {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return FormatPublicKey(srv.hostSigner.PublicKey())
}

func (srv *testServer) authorize(key ssh.PublicKey) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.authorized = append(srv.authorized, key)
}

func (srv *testServer) rotateHostKey() {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.hostSigner = newSigner(srv.t)
}

func (srv *testServer) config() *ssh.ServerConfig {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	authorized := append([]ssh.PublicKey(nil), srv.authorized...)
	config := &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if conn.User() == testUser && string(password) == testPassword {
				return &ssh.Permissions{}, nil
			}
			return nil, errors.New("wrong password")
		},
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			for _, k := range authorized {
				if bytes.Equal(k.Marshal(), key.Marshal()) {
					return &ssh.Permissions{}, nil
				}
			}
			return nil, errors.New("unknown public key")
		},
	}
	config.AddHostKey(srv.hostSigner)
	return config
}

func (srv *testServer) start(addr string) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		srv.t.Fatalf("listen: %v", err)
	}

	srv.mu.Lock()
	srv.addr = listener.Addr().String()
	srv.listener = listener
	srv.done = make(chan struct{})
	done := srv.done
	srv.mu.Unlock()

	go func() {
		defer close(done)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			srv.mu.Lock()
			srv.conns = append(srv.conns, conn)
			srv.mu.Unlock()
			go srv.handleConn(conn, srv.config())
		}
	}()
}

func (srv *testServer) stop() {
	srv.mu.Lock()
	listener, conns, done := srv.listener, srv.conns, srv.done
	srv.listener, srv.conns = nil, nil
	srv.mu.Unlock()

	if listener == nil {
		return
	}
	listener.Close()
	for _, c := range conns {
		c.Close()
	}
	<-done
}

// reboot drops every connection and comes back on the same address.
func (srv *testServer) reboot() {
	addr := srv.addr
	srv.stop()
	srv.start(addr)
}

func (srv *testServer) handleConn(netConn net.Conn, config *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, config)
	if err != nil {
		netConn.Close()
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go handleSession(ch, requests)
	}
}

func handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()
	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			cmd := exec.Command("sh", "-c", payload.Command)
			cmd.Stdout = ch
			cmd.Stderr = ch.Stderr()
			status := 0
			if err := cmd.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					status = exitErr.ExitCode()
				} else {
					status = 127
				}
			}
			ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
			return
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			server, err := sftp.NewServer(ch)
			if err != nil {
				return
			}
			server.Serve()
			server.Close()
			return
		default:
			if req.WantReply {
				req.Reply(true, nil)
			}
		}
	}
}

// writeKeyPair stores an OpenSSH key pair under dir and authorizes it on srv.
func writeKeyPair(t *testing.T, srv *testServer, dir, passphrase string) (pubPath, privPath string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	var block *pem.Block
	if passphrase != "" {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	} else {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	}
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}

	privPath = filepath.Join(dir, "id_ed25519")
	pubPath = privPath + ".pub"
	if err := os.WriteFile(privPath, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("write private key: %v", err)
	}
	if err := os.WriteFile(pubPath, ssh.MarshalAuthorizedKey(sshPub), 0644); err != nil {
		t.Fatalf("write public key: %v", err)
	}

	if srv != nil {
		srv.authorize(sshPub)
	}
	return pubPath, privPath
}

// startAgent serves a keyring holding one key authorized on srv and returns its socket path.
func startAgent(t *testing.T, srv *testServer) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyring := agent.NewKeyring()
	if err := keyring.Add(agent.AddedKey{PrivateKey: priv}); err != nil {
		t.Fatalf("add key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	srv.authorize(signer.PublicKey())

	socket := filepath.Join(t.TempDir(), "agent.sock")
	listener, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen agent: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				agent.ServeAgent(keyring, conn)
			}()
		}
	}()
	return socket
}
