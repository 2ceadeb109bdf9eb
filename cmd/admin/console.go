package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"creepair.dev/internal/protocol"
)

// consoleCmd sends one command to the running server and prints the result.
func consoleCmd(name string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	wsURL := fs.String("url", "ws://127.0.0.1:8080/v1/console", "console websocket url")
	timeout := fs.Duration("timeout", 10*time.Second, "round trip timeout")
	_ = fs.Parse(args)

	cmd, err := buildCmd(name, fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	res, err := roundTrip(*wsURL, cmd, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "console:", err)
		os.Exit(1)
	}
	if !res.OK {
		fmt.Fprintf(os.Stderr, "%s: %s\n", res.Code, res.Message)
		os.Exit(1)
	}
	if res.Message != "" {
		fmt.Println(res.Message)
	}
	b, _ := json.MarshalIndent(res.State, "", "  ")
	fmt.Println(string(b))
}

// buildCmd turns command line arguments into a CMD message. period and
// process take exactly one positive integer.
func buildCmd(name string, args []string) (protocol.CmdMsg, error) {
	var value *int
	switch name {
	case protocol.CmdPeriod, protocol.CmdProcess:
		if len(args) != 1 {
			return protocol.CmdMsg{}, fmt.Errorf("usage: admin %s <n>", name)
		}
		n, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil || n <= 0 {
			return protocol.CmdMsg{}, fmt.Errorf("%s: %q is not a positive integer", name, args[0])
		}
		value = &n
	default:
		if len(args) != 0 {
			return protocol.CmdMsg{}, fmt.Errorf("usage: admin %s", name)
		}
	}
	cmd := protocol.NewCmd(name, value)
	cmd.ReqID = uuid.NewString()
	return cmd, nil
}

func roundTrip(url string, cmd protocol.CmdMsg, timeout time.Duration) (protocol.ResultMsg, error) {
	var res protocol.ResultMsg
	d := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := d.Dial(url, nil)
	if err != nil {
		return res, err
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(cmd); err != nil {
		return res, err
	}
	_ = conn.SetReadDeadline(deadline)
	if err := conn.ReadJSON(&res); err != nil {
		return res, err
	}
	if res.ReqID != "" && res.ReqID != cmd.ReqID {
		return res, fmt.Errorf("result for %s, expected %s", res.ReqID, cmd.ReqID)
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return res, nil
}
