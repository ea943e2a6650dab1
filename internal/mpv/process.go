package mpv

import (
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dexterlb/mpvipc"
	"github.com/go-kit/log/level"
)

func defaultPidFile() string {
	return filepath.Join(os.TempDir(), "gpmdp-mpv.pid")
}

func defaultSocketPath() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\gpmdp-mpv`
	}
	return filepath.Join(os.TempDir(), "gpmdp-mpv.sock")
}

// playerArgs builds the command line for a headless, IPC-driven player
func (c *Controller) playerArgs() []string {
	args := []string{
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--keep-open=no",
		"--volume=100",
		"--input-ipc-server=" + c.socketPath,
	}
	switch runtime.GOOS {
	case "darwin":
		args = append(args, "--ao=coreaudio")
	case "windows":
		args = append(args, "--ao=wasapi")
	default:
		args = append(args, "--ao=pipewire,pulse,alsa")
	}
	return args
}

func (c *Controller) socketExists() bool {
	if runtime.GOOS == "windows" {
		return true
	}
	_, err := os.Stat(c.socketPath)
	return err == nil
}

// adopt connects to a player left running by a previous run. The
// connection is only kept if the player answers a property read.
func (c *Controller) adopt() *mpvipc.Connection {
	if !c.socketExists() {
		return nil
	}
	conn := mpvipc.NewConnection(c.socketPath)
	if err := conn.Open(); err != nil {
		level.Debug(c.logger).Log("msg", "no player on socket", "socket", c.socketPath, "err", err)
		return nil
	}
	if _, err := conn.Get("mpv-version"); err != nil {
		level.Warn(c.logger).Log("msg", "existing player unhealthy", "err", err)
		conn.Close()
		return nil
	}
	return conn
}

// spawn starts a fresh player and waits for its IPC socket
func (c *Controller) spawn() (*mpvipc.Connection, error) {
	cmd := exec.Command(c.executable, c.playerArgs()...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	c.cmd = cmd
	os.WriteFile(c.pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0644)
	level.Info(c.logger).Log("msg", "player started", "pid", cmd.Process.Pid)

	var conn *mpvipc.Connection
	var err error
	for i := 0; i < 50; i++ {
		conn = mpvipc.NewConnection(c.socketPath)
		if err = conn.Open(); err == nil {
			return conn, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	cmd.Process.Kill()
	os.Remove(c.pidFile)
	c.cmd = nil
	return nil, err
}

// cleanupOrphans removes players a crashed run left holding our socket
func (c *Controller) cleanupOrphans() {
	if c.socketExists() {
		conn := mpvipc.NewConnection(c.socketPath)
		if err := conn.Open(); err == nil {
			conn.Call("quit")
			conn.Close()
			time.Sleep(500 * time.Millisecond)
		}
	}

	if data, err := os.ReadFile(c.pidFile); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid > 0 {
			c.kill(pid)
		}
	}
	if runtime.GOOS != "windows" {
		for _, pid := range c.socketOwners() {
			c.kill(pid)
		}
	}

	os.Remove(c.socketPath)
	os.Remove(c.pidFile)
}

func (c *Controller) kill(pid int) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	if runtime.GOOS != "windows" {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			return
		}
	}
	level.Info(c.logger).Log("msg", "killing orphaned player", "pid", pid)
	proc.Kill()
	proc.Wait()
}

// socketOwners asks lsof, then pgrep, for processes holding our socket
func (c *Controller) socketOwners() []int {
	for _, probe := range [][]string{
		{"lsof", "-t", c.socketPath},
		{"pgrep", "-f", c.socketPath},
	} {
		out, err := exec.Command(probe[0], probe[1:]...).Output()
		if err != nil {
			continue
		}
		if pids := parsePids(out); len(pids) > 0 {
			return pids
		}
	}
	return nil
}

func parsePids(out []byte) []int {
	var pids []int
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if pid, err := strconv.Atoi(strings.TrimSpace(scanner.Text())); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}
