package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mcdev12/roomsync/go/internal/client"
	"github.com/mcdev12/roomsync/go/internal/protocol"
	"github.com/mcdev12/roomsync/go/internal/router"
	"github.com/mcdev12/roomsync/go/internal/whiteboard"
)

const requestTimeout = 10 * time.Second

const helpText = `commands:
  /login <name>      log in
  /logout            log out
  /rooms             list active rooms
  /join <room>       join a room (leaves the current one)
  /leave             leave the room
  /users             list room members
  /dm <user> [text]  direct messages go to <user>; with text, send one
  /all               chat to the whole room again
  /draw <x> <y>      press the pen at x,y
  /move <x> <y>      drag the pen to x,y
  /up                lift the pen
  /color <color>     stroke color
  /width <n>         stroke width
  /clear             clear the whiteboard
  /board             print the whiteboard
  /quit              exit
anything else is sent as chat`

// terminal is a line-oriented front end. It renders the client view on out.
type terminal struct {
	client *client.Client

	mu  sync.Mutex
	out io.Writer
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out}
}

func (t *terminal) printf(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format+"\n", args...)
}

func (t *terminal) UsersChanged(users []protocol.User, localID string) {
	if len(users) == 0 {
		return
	}
	t.printf("* users: %s", formatUsers(users, localID))
}

func (t *terminal) TypingChanged(text string) {
	if text != "" {
		t.printf("* %s", text)
	}
}

func (t *terminal) RenderChat(msg router.ChatMessage) {
	t.printf("%s", formatChat(msg))
}

func (t *terminal) Notify(text string) {
	t.printf("! %s", text)
}

func formatUsers(users []protocol.User, localID string) string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		name := u.Username
		if name == "" {
			name = u.ID
		}
		if u.ID == localID {
			name += " (you)"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func formatChat(msg router.ChatMessage) string {
	prefix := ""
	if msg.Direct {
		prefix = "[dm] "
	}
	return fmt.Sprintf("%s%s: %s", prefix, msg.DisplayName, msg.Text)
}

// parseLine splits a command line into the command and its arguments. Plain text returns
// an empty command.
func parseLine(line string) (string, []string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", nil
	}
	fields := strings.Fields(line)
	return strings.ToLower(fields[0]), fields[1:]
}

func parsePoint(args []string) (whiteboard.Point, error) {
	if len(args) != 2 {
		return whiteboard.Point{}, errors.New("expected <x> <y>")
	}
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return whiteboard.Point{}, fmt.Errorf("bad x: %w", err)
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return whiteboard.Point{}, fmt.Errorf("bad y: %w", err)
	}
	return whiteboard.Point{X: x, Y: y}, nil
}

// handle runs one input line and reports whether the terminal should exit
func (t *terminal) handle(ctx context.Context, line string) bool {
	cmd, args := parseLine(line)
	if cmd == "" {
		t.chat(line)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		t.printf("%s", helpText)

	case "/login":
		if len(args) != 1 {
			t.printf("usage: /login <name>")
			return false
		}
		s, err := t.client.Login(ctx, args[0])
		if err != nil {
			t.Notify("Login failed: " + err.Error())
			return false
		}
		t.Notify("Logged in as " + s.Username)

	case "/logout":
		t.client.Logout()

	case "/rooms":
		rooms, err := t.client.ListRooms(ctx)
		if err != nil {
			t.Notify("Could not list rooms: " + err.Error())
			return false
		}
		if len(rooms) == 0 {
			t.printf("no active rooms")
		}
		for _, r := range rooms {
			t.printf("  %s (%d connected)", r.ID, r.ClientCount)
		}

	case "/join":
		if len(args) != 1 {
			t.printf("usage: /join <room>")
			return false
		}
		if err := t.client.JoinRoom(ctx, args[0]); err != nil {
			if errors.Is(err, client.ErrNotLoggedIn) {
				t.Notify("Log in first")
			} else {
				t.Notify("Join failed: " + err.Error())
			}
		}

	case "/leave":
		t.client.Leave()

	case "/users":
		rs := t.client.Room()
		if rs == nil {
			t.Notify("Not in a room")
			return false
		}
		localID := ""
		if s := t.client.Session(); s != nil {
			localID = s.UserID
		}
		t.printf("* users: %s", formatUsers(rs.Users(), localID))

	case "/dm":
		if len(args) == 0 {
			t.printf("usage: /dm <user> [text]")
			return false
		}
		if err := t.client.SetDirectTarget(args[0]); err != nil {
			t.Notify(err.Error())
			return false
		}
		if len(args) > 1 {
			t.chat(strings.Join(args[1:], " "))
		}

	case "/all":
		_ = t.client.SetDirectTarget("")

	case "/draw", "/move":
		p, err := parsePoint(args)
		if err != nil {
			t.printf("usage: %s <x> <y>: %v", cmd, err)
			return false
		}
		if cmd == "/draw" {
			t.client.PointerDown(p)
		} else {
			t.client.PointerMove(p)
		}

	case "/up":
		t.client.PointerUp()

	case "/color":
		if len(args) != 1 {
			t.printf("usage: /color <color>")
			return false
		}
		t.client.SetStyle(whiteboard.Style{Color: args[0]})

	case "/width":
		width, err := strconv.ParseFloat(strings.Join(args, ""), 64)
		if err != nil || width <= 0 {
			t.printf("usage: /width <n>")
			return false
		}
		t.client.SetStyle(whiteboard.Style{LineWidth: width})

	case "/clear":
		t.client.ClearBoard()

	case "/board":
		surface, ok := t.client.Renderer().(*whiteboard.Surface)
		if !ok {
			return false
		}
		ops := surface.Ops()
		if len(ops) == 0 {
			t.printf("whiteboard is empty")
		}
		for _, op := range ops {
			t.printf("  %s", op)
		}

	default:
		t.printf("unknown command %s, try /help", cmd)
	}
	return false
}

func (t *terminal) chat(text string) {
	if err := t.client.SendChat(text); err != nil {
		t.Notify("Not in a room")
	}
}
