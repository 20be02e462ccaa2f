// Package codeclient talks to the CodeClient mod's websocket API to place
// compiled templates on a DiamondFire plot.
package codeclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("basalt.codeclient")

// DefaultURL is where CodeClient listens by default.
const DefaultURL = "ws://localhost:31375"

// DefaultScopes are the permissions needed to place code.
var DefaultScopes = []string{"movement", "write_code"}

// Modes accepted by SetMode.
const (
	ModePlay  = "play"
	ModeDev   = "dev"
	ModeBuild = "build"
)

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("codeclient: connection closed")

// Options configures Dial.
type Options struct {
	// Scopes requested when no saved token is accepted.
	Scopes []string
	// TokenFile persists the token CodeClient hands out, so later
	// connections skip the in-game confirmation. Empty disables it.
	TokenFile string
	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Client is an authenticated CodeClient connection.
type Client struct {
	conn *websocket.Conn
	opts Options

	writeMu  sync.Mutex
	messages chan string
	closing  chan struct{}
	done     chan struct{}
	readErr  error
	once     sync.Once
}

// Dial connects to CodeClient at url and authenticates. A saved token is
// tried first; when CodeClient rejects it the scopes are requested, which
// the player confirms in game.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	if len(opts.Scopes) == 0 {
		opts.Scopes = DefaultScopes
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("codeclient: cannot connect to %s: %w", url, err)
	}

	c := &Client{
		conn:     conn,
		opts:     opts,
		messages: make(chan string, 16),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.readLoop()

	if err := c.authenticate(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr = err
			return
		}
		select {
		case c.messages <- string(data):
		case <-c.closing:
			return
		}
	}
}

func (c *Client) send(msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("codeclient: send %q: %w", command(msg), err)
	}
	return nil
}

// next waits for the next message from CodeClient.
func (c *Client) next(ctx context.Context) (string, []string, error) {
	select {
	case msg := <-c.messages:
		fields := strings.Fields(msg)
		if len(fields) == 0 {
			return "", nil, nil
		}
		return fields[0], fields[1:], nil
	case <-c.done:
		if c.readErr != nil && !websocket.IsCloseError(c.readErr, websocket.CloseNormalClosure) {
			return "", nil, fmt.Errorf("codeclient: %w", c.readErr)
		}
		return "", nil, ErrClosed
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

func (c *Client) authenticate(ctx context.Context) error {
	viaScopes := false
	if token := c.savedToken(); token != "" {
		if err := c.send("token " + token); err != nil {
			return err
		}
	} else {
		viaScopes = true
		if err := c.requestScopes(); err != nil {
			return err
		}
	}

	for {
		cmd, args, err := c.next(ctx)
		if err != nil {
			return fmt.Errorf("codeclient: authentication: %w", err)
		}
		switch {
		case cmd == "auth":
			if !viaScopes {
				log.Debug("authenticated with saved token")
				return nil
			}
			log.Info("authenticated, requesting a token")
			if err := c.send("token"); err != nil {
				return err
			}
		case cmd == "invalid" && len(args) > 0 && args[0] == "token":
			log.Info("saved token rejected, confirm the scopes in game")
			viaScopes = true
			if err := c.requestScopes(); err != nil {
				return err
			}
		case cmd == "token" && len(args) > 0:
			c.saveToken(args[0])
			return nil
		default:
			log.Warningf("unexpected message during authentication: %s", cmd)
		}
	}
}

func (c *Client) requestScopes() error {
	return c.send("scopes " + strings.Join(c.opts.Scopes, " "))
}

func (c *Client) savedToken() string {
	if c.opts.TokenFile == "" {
		return ""
	}
	data, err := os.ReadFile(c.opts.TokenFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (c *Client) saveToken(token string) {
	if c.opts.TokenFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.opts.TokenFile), 0o755); err != nil {
		log.Warningf("cannot save token: %s", err)
		return
	}
	if err := os.WriteFile(c.opts.TokenFile, []byte(token), 0o600); err != nil {
		log.Warningf("cannot save token: %s", err)
	}
}

// Place swaps the plot's code for templates and waits until CodeClient
// reports the placement done.
func (c *Client) Place(ctx context.Context, templates []string) error {
	if err := c.send("place swap"); err != nil {
		return err
	}
	for _, t := range templates {
		if err := c.send("place " + t); err != nil {
			return err
		}
	}
	if err := c.send("place go"); err != nil {
		return err
	}

	for {
		cmd, args, err := c.next(ctx)
		if err != nil {
			return fmt.Errorf("codeclient: place: %w", err)
		}
		if cmd == "place" && len(args) > 0 && args[0] == "done" {
			log.Infof("placed %d templates", len(templates))
			return nil
		}
		log.Warningf("unexpected message while placing: %s %s", cmd, strings.Join(args, " "))
	}
}

// SetMode switches the player to play, dev or build mode.
func (c *Client) SetMode(ctx context.Context, mode string) error {
	switch mode {
	case ModePlay, ModeDev, ModeBuild:
	default:
		return fmt.Errorf("codeclient: unknown mode %q", mode)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.send("mode " + mode)
}

// Close ends the connection.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closing)
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
		<-c.done
	})
	return err
}

// command returns the first word of msg, keeping template codes out of
// error messages.
func command(msg string) string {
	if i := strings.IndexByte(msg, ' '); i >= 0 {
		return msg[:i]
	}
	return msg
}
