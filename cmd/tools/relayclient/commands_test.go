package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/zhouzirui/z-relay/backend/internal/protocol"
)

func TestParseInputMessage(t *testing.T) {
	cmd, act, err := parseInput("  hello there ", false)
	if err != nil || act != actionSend {
		t.Fatalf("unexpected result: %v %v", act, err)
	}
	if cmd != (protocol.Message{Content: "hello there"}) {
		t.Fatalf("unexpected command: %#v", cmd)
	}
}

func TestParseInputCommands(t *testing.T) {
	cases := []struct {
		line     string
		operator bool
		want     protocol.Inbound
		act      action
	}{
		{"/list-operators", false, protocol.ListOperators{}, actionSend},
		{"/list-users", true, protocol.ListUsers{}, actionSend},
		{"/connect abc-123", true, protocol.Connect{TargetID: "abc-123"}, actionSend},
		{"/set-name Ada Lovelace", false, protocol.SetName{Name: "Ada Lovelace"}, actionSend},
		{"/disconnect", false, protocol.Disconnect{}, actionSend},
		{"/client-id", true, protocol.RequestClientID{}, actionSend},
		{"/help", false, nil, actionHelp},
		{"/quit", true, nil, actionQuit},
	}

	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			cmd, act, err := parseInput(tc.line, tc.operator)
			if err != nil {
				t.Fatalf("parseInput err: %v", err)
			}
			if act != tc.act || cmd != tc.want {
				t.Fatalf("got (%#v, %v), want (%#v, %v)", cmd, act, tc.want, tc.act)
			}
		})
	}
}

func TestParseInputRejectsModeMismatch(t *testing.T) {
	if _, _, err := parseInput("/connect abc", false); !errors.Is(err, errUnknownCommand) {
		t.Fatalf("expected unknown command for user connect, got %v", err)
	}
	if _, _, err := parseInput("/list-operators", true); !errors.Is(err, errUnknownCommand) {
		t.Fatalf("expected unknown command for operator list-operators, got %v", err)
	}
}

func TestParseInputRequiresArgs(t *testing.T) {
	_, _, err := parseInput("/connect", true)
	if err == nil || !strings.Contains(err.Error(), "usage") {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestHelpTextPerMode(t *testing.T) {
	user := helpText(false)
	if !strings.Contains(user, "/list-operators") || strings.Contains(user, "/list-users") {
		t.Fatalf("unexpected user help:\n%s", user)
	}
	operator := helpText(true)
	if !strings.Contains(operator, "/connect <id>") || strings.Contains(operator, "/list-operators") {
		t.Fatalf("unexpected operator help:\n%s", operator)
	}
}

func TestRenderStreamEndError(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	raw, err := protocol.Encode(protocol.StreamEndFailed())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	frame, err := protocol.DecodeFrame(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	render(&buf, frame)

	if !strings.Contains(buf.String(), "Error: "+protocol.StreamErrorMessage) {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
