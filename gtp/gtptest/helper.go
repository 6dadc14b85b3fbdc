package gtptest

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// HelperEnv is set in the environment of helper engine processes.
const HelperEnv = "GO_WANT_GTP_HELPER_PROCESS"

// HelperCommand returns a command line and environment additions that
// re-run the current test binary as a GTP engine. The test binary must
// have a test named TestHelperProcess that calls RunHelperProcess.
//
// args are engine flags followed by a kind and its arguments, eg
//
//	HelperCommand("-name=t1", "up-column", "E")
//	HelperCommand("script", "D3", "resign")
//	HelperCommand("usage")
func HelperCommand(args ...string) (command []string, env []string) {
	command = append([]string{os.Args[0], "-test.run=^TestHelperProcess$", "--"}, args...)
	return command, []string{HelperEnv + "=1"}
}

// RunHelperProcess serves a GTP engine on stdin and stdout and exits, if
// the process was started by HelperCommand. Otherwise it does nothing.
func RunHelperProcess() {
	if os.Getenv(HelperEnv) != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	os.Exit(runHelper(args))
}

func runHelper(args []string) int {
	fs := flag.NewFlagSet("helper", flag.ContinueOnError)
	name := fs.String("name", "helper", "engine name")
	cpuTime := fs.Float64("cpu-time", -1, "implement gomill-cpu_time")
	flood := fs.Int("stderr-flood", 0, "bytes of stderr to write before each genmove response")
	exitOn := fs.String("exit-on", "", "comma-separated commands that make the engine exit")
	genmoveEx := fs.Bool("genmove-ex", false, "implement gomill-genmove_ex")
	comments := fs.Bool("comments", false, "implement gomill-explain_last_move")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "helper: missing engine kind")
		return 2
	}

	var e *Engine
	switch kind := rest[0]; kind {
	case "passer":
		e = NewEngine(*name)
	case "up-column":
		if len(rest) != 2 {
			fmt.Fprintln(os.Stderr, "helper: up-column needs a column")
			return 2
		}
		e = UpColumn(*name, rest[1])
	case "script":
		e = Scripted(*name, rest[1:]...)
	case "usage":
		fmt.Println("usage: helper [options]")
		return 1
	case "gmp":
		os.Stdout.WriteString(gmpHello + "\n")
		return 1
	case "silent":
		return 0
	default:
		fmt.Fprintf(os.Stderr, "helper: unknown engine kind %q\n", kind)
		return 2
	}
	e.Stderr = os.Stderr
	if *cpuTime >= 0 {
		e.SetCPUTime(*cpuTime)
	}
	if *flood > 0 {
		e.FloodStderr(*flood)
	}
	if *genmoveEx {
		e.EnableGenmoveEx()
	}
	if *comments {
		e.EnableComments()
	}
	for _, cmd := range strings.Split(*exitOn, ",") {
		if cmd != "" {
			e.ExitOn(cmd)
		}
	}
	if err := e.Serve(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// gmpHello is a Go Modem Protocol handshake packet.
const gmpHello = "\x01\xa1\xa0\x80"
