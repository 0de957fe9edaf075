package traveltek

import (
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/tidewave/cruisesync/internal/pkg/feederr"
)

// Conn is one remote file-transfer session. The pool owns the lifecycle;
// callers only retrieve files through it.
type Conn interface {
	Retrieve(path string) ([]byte, error)
	Ping() error
	Close() error
}

// Dialer opens a new authenticated session. Injected so tests can run the
// pool against a fake remote.
type Dialer func(cfg *Config) (Conn, error)

// ftpConn wraps a jlaffaye/ftp server connection.
type ftpConn struct {
	conn *ftp.ServerConn
}

// DialFTP opens and authenticates a real FTP session.
func DialFTP(cfg *Config) (Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	c, err := ftp.Dial(addr, ftp.DialWithTimeout(cfg.DialTimeout))
	if err != nil {
		return nil, feederr.Wrap(feederr.ErrConnection, "dial %s: %v", addr, err)
	}
	if err := c.Login(cfg.User, cfg.Password); err != nil {
		_ = c.Quit()
		return nil, feederr.Wrap(feederr.ErrConnection, "login %s: %v", cfg.User, err)
	}
	return &ftpConn{conn: c}, nil
}

// Retrieve downloads one remote file, classifying the failure mode: a 550
// reply means the path does not exist, anything else is a transport problem.
func (f *ftpConn) Retrieve(path string) ([]byte, error) {
	resp, err := f.conn.Retr(path)
	if err != nil {
		if isFileUnavailable(err) {
			return nil, feederr.Wrap(feederr.ErrFileNotFound, "%s", path)
		}
		return nil, feederr.Wrap(feederr.ErrConnection, "retr %s: %v", path, err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, feederr.Wrap(feederr.ErrConnection, "read %s: %v", path, err)
	}
	return data, nil
}

// Ping checks session liveness before the pool hands it out again.
func (f *ftpConn) Ping() error {
	if err := f.conn.NoOp(); err != nil {
		return feederr.Wrap(feederr.ErrConnection, "noop: %v", err)
	}
	return nil
}

func (f *ftpConn) Close() error {
	return f.conn.Quit()
}

// isFileUnavailable reports whether the server replied 550 (file not found /
// no access) rather than failing at the transport level.
func isFileUnavailable(err error) bool {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return proto.Code == ftp.StatusFileUnavailable
	}
	return false
}

// pooledConn tracks when an idle session was last used for eviction.
type pooledConn struct {
	conn     Conn
	lastUsed time.Time
}
