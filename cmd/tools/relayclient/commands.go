package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/z-relay/backend/internal/protocol"
)

type action int

const (
	actionSend action = iota
	actionHelp
	actionQuit
)

var errUnknownCommand = errors.New("unrecognized command")

type commandSpec struct {
	name     string
	args     string
	help     string
	operator bool
	user     bool
}

var commands = []commandSpec{
	{name: "list-operators", help: "List available operators", user: true},
	{name: "list-users", help: "List connected users", operator: true},
	{name: "connect", args: "<id>", help: "Connect to a user", operator: true},
	{name: "disconnect", help: "Drop the current connection", operator: true, user: true},
	{name: "set-name", args: "<name>", help: "Set your display name", operator: true, user: true},
	{name: "client-id", help: "Show your client id", operator: true, user: true},
	{name: "help", help: "Show the help menu", operator: true, user: true},
	{name: "quit", help: "Exit", operator: true, user: true},
}

// parseInput maps a line typed by the user to a frame. Lines not starting
// with "/" are chat messages.
func parseInput(line string, operator bool) (protocol.Inbound, action, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return protocol.Message{Content: line}, actionSend, nil
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	spec, ok := lookup(name, operator)
	if !ok {
		return nil, actionSend, fmt.Errorf("%w: /%s", errUnknownCommand, name)
	}
	if spec.args != "" && arg == "" {
		return nil, actionSend, fmt.Errorf("usage: /%s %s", spec.name, spec.args)
	}

	switch spec.name {
	case "quit":
		return nil, actionQuit, nil
	case "help":
		return nil, actionHelp, nil
	case "list-operators":
		return protocol.ListOperators{}, actionSend, nil
	case "list-users":
		return protocol.ListUsers{}, actionSend, nil
	case "connect":
		return protocol.Connect{TargetID: arg}, actionSend, nil
	case "disconnect":
		return protocol.Disconnect{}, actionSend, nil
	case "set-name":
		return protocol.SetName{Name: arg}, actionSend, nil
	case "client-id":
		return protocol.RequestClientID{}, actionSend, nil
	}
	return nil, actionSend, fmt.Errorf("%w: /%s", errUnknownCommand, name)
}

func lookup(name string, operator bool) (commandSpec, bool) {
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if (operator && c.operator) || (!operator && c.user) {
			return c, true
		}
	}
	return commandSpec{}, false
}

func helpText(operator bool) string {
	var b strings.Builder
	b.WriteString("\nCommands:\n")
	for _, c := range commands {
		if (operator && !c.operator) || (!operator && !c.user) {
			continue
		}
		usage := "/" + c.name
		if c.args != "" {
			usage += " " + c.args
		}
		fmt.Fprintf(&b, "  %-20s %s\n", usage, c.help)
	}
	b.WriteString("Any other input will be sent as a message\n")
	return b.String()
}
