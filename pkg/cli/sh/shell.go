// Package sh provides the interactive shell over a simulated board.
package sh

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"
	"github.com/google/shlex"

	"github.com/robotalks/sercom.go/pkg/board"
	"github.com/robotalks/sercom.go/pkg/bridge"
	"github.com/robotalks/sercom.go/pkg/env"
	"github.com/robotalks/sercom.go/pkg/framework"
	"github.com/robotalks/sercom.go/pkg/sercom"
	"github.com/robotalks/sercom.go/pkg/sercom/sim"
	"github.com/robotalks/sercom.go/pkg/spi"
	"github.com/robotalks/sercom.go/pkg/uart"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Config  *env.Config
	Session *Session
}

// Session is an open board running its loop.
type Session struct {
	Ctx      context.Context
	Cancel   func()
	Device   *sim.Device
	Instance *board.Instance
	Loop     *framework.Loop
	Current  string

	done chan struct{}
}

const (
	shellKey     = "$shell"
	closedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	scriptFile string

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&ListCmd,
		&UseCmd,
		&StatusCmd,
		&ClaimsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&scriptFile, "f", scriptFile, "Run commands from a script file.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requiring an open board.
func MustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Session == nil {
			c.Err(fmt.Errorf("no board open"))
			return
		}
		fn(c)
	}
}

// Print prints v as JSON in JSON mode, or text otherwise.
func Print(c *ishell.Context, v interface{}, text string) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Port returns the current controller, or the one named by the first
// argument when it names a controller, which is then removed from args.
func Port(c *ishell.Context) (bridge.NamedPort, error) {
	sess := ShellFrom(c).Session
	if len(c.Args) > 0 {
		if p := sess.Instance.Port(c.Args[0]); p != nil {
			c.Args = c.Args[1:]
			return p, nil
		}
	}
	if sess.Current == "" {
		return nil, fmt.Errorf("no controller selected")
	}
	return sess.Instance.Port(sess.Current), nil
}

// UART returns the selected UART controller.
func UART(c *ishell.Context) (*uart.Controller, error) {
	p, err := Port(c)
	if err != nil {
		return nil, err
	}
	ctl, ok := p.(*uart.Controller)
	if !ok {
		return nil, fmt.Errorf("%s is not a UART", p.Name())
	}
	return ctl, nil
}

// SPI returns the selected SPI controller.
func SPI(c *ishell.Context) (*spi.Controller, error) {
	p, err := Port(c)
	if err != nil {
		return nil, err
	}
	ctl, ok := p.(*spi.Controller)
	if !ok {
		return nil, fmt.Errorf("%s is not a SPI", p.Name())
	}
	return ctl, nil
}

// Open loads the board file and starts its loop.
func (s *Shell) Open(boardFile string) error {
	conf := *s.Config
	if boardFile != "" {
		conf.BoardFile = boardFile
	}
	b, err := conf.LoadBoard()
	if err != nil {
		return err
	}
	dev := sim.New()
	inst, err := board.Build(b, dev, sercom.DefaultPool())
	if err != nil {
		return err
	}
	s.Close()
	sess := &Session{
		Device:   dev,
		Instance: inst,
		Loop:     framework.NewLoop(),
		done:     make(chan struct{}),
	}
	sess.Loop.Interval = conf.LoopInterval
	sess.Loop.Add(inst)
	if ports := inst.Ports(); len(ports) > 0 {
		sess.Current = ports[0].Name()
	}
	sess.Ctx, sess.Cancel = context.WithCancel(context.Background())
	go func() {
		defer close(sess.done)
		if err := sess.Loop.Run(sess.Ctx); err != nil && sess.Ctx.Err() == nil {
			glog.Errorf("loop: %v", err)
		}
	}()
	s.Session = sess
	s.updatePrompt()
	return nil
}

// Close stops the loop and closes the controllers.
func (s *Shell) Close() {
	if sess := s.Session; sess != nil {
		sess.Cancel()
		<-sess.done
		if err := sess.Instance.Close(); err != nil {
			glog.Warningf("close: %v", err)
		}
		s.Session = nil
	}
	s.updatePrompt()
}

// Use selects the current controller.
func (s *Shell) Use(name string) error {
	if s.Session == nil || s.Session.Instance.Port(name) == nil {
		return fmt.Errorf("unknown controller %q", name)
	}
	s.Session.Current = name
	s.updatePrompt()
	return nil
}

func (s *Shell) updatePrompt() {
	switch {
	case s.Session == nil:
		s.Shell.SetPrompt(closedPrompt)
	case s.Session.Current == "":
		s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", s.Session.Instance.Board.Name))
	default:
		s.Shell.SetPrompt(fmt.Sprintf("[%s/%s] > ", s.Session.Instance.Board.Name, s.Session.Current))
	}
}

// RunScript runs each line of a script file as a command. Blank lines
// and lines starting with # are skipped.
func (s *Shell) RunScript(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args, err := shlex.Split(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if err := s.Shell.Process(args...); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	return scanner.Err()
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Close()
	if scriptFile != "" {
		if err := s.RunScript(scriptFile); err != nil {
			glog.Exit(err)
		}
		if len(args) == 0 && !s.Interactive {
			return
		}
	}
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	if scriptFile == "" {
		glog.Exit("command expected")
	}
}

type portInfo struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Unit     string `json:"unit"`
	Status   string `json:"status"`
}

var (
	// OpenCmd opens a board file.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[BOARD-FILE]",
		Func: func(c *ishell.Context) {
			var file string
			if len(c.Args) > 0 {
				file = c.Args[0]
			}
			if err := ShellFrom(c).Open(file); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the board.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// ListCmd lists the controllers of the board.
	ListCmd = ishell.Cmd{
		Name:    "list",
		Aliases: []string{"l"},
		Help:    "",
		Func: MustBeOpen(func(c *ishell.Context) {
			var items []portInfo
			var lines []string
			for _, p := range ShellFrom(c).Session.Instance.Ports() {
				st := p.Snapshot()
				info := portInfo{
					Name:     p.Name(),
					Protocol: st.Protocol,
					Unit:     sercom.ID(st.Unit).String(),
					Status:   fmt.Sprintf("on=%v error=%s", st.On, st.Error),
				}
				items = append(items, info)
				lines = append(lines, fmt.Sprintf("%-12s %-4s %s %s", info.Name, info.Protocol, info.Unit, info.Status))
			}
			Print(c, items, strings.Join(lines, "\n"))
		}),
	}

	// UseCmd selects the current controller.
	UseCmd = ishell.Cmd{
		Name:    "use",
		Aliases: []string{"u"},
		Help:    "NAME",
		Func: MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("NAME required"))
				return
			}
			if err := ShellFrom(c).Use(c.Args[0]); err != nil {
				c.Err(err)
			}
		}),
	}

	// StatusCmd prints the status of a controller.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "[NAME]",
		Func: MustBeOpen(func(c *ishell.Context) {
			p, err := Port(c)
			if err != nil {
				c.Err(err)
				return
			}
			st := p.Snapshot()
			Print(c, st, st.String())
		}),
	}

	// ClaimsCmd prints the claimed units.
	ClaimsCmd = ishell.Cmd{
		Name: "claims",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context) {
			claims := ShellFrom(c).Session.Instance.Pool.Claims()
			lines := make([]string, 0, len(claims))
			for _, claim := range claims {
				lines = append(lines, fmt.Sprintf("%s %s", claim.ID, claim.Owner))
			}
			Print(c, claims, strings.Join(lines, "\n"))
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).Run(flag.Args()...)
}
