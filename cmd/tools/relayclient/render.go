package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/zhouzirui/z-relay/backend/internal/model/chat"
	"github.com/zhouzirui/z-relay/backend/internal/protocol"
)

var (
	assistantColor = color.New(color.FgCyan)
	peerColor      = color.New(color.FgGreen)
	noticeColor    = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed, color.Bold)
)

// render prints a server frame. Stream chunks are written without newlines so
// replies appear as they arrive.
func render(w io.Writer, f protocol.Frame) {
	switch f.Type {
	case protocol.TypeConversationID:
		noticeColor.Fprintf(w, "Conversation id: %s\n", f.ConversationID)
	case protocol.TypeLoginResponse:
		if f.Success {
			noticeColor.Fprintln(w, "Logged in as operator")
		} else {
			errorColor.Fprintln(w, "Login failed")
		}
	case protocol.TypeStreamStart:
		assistantColor.Fprint(w, "Assistant: ")
	case protocol.TypeStreamChunk:
		assistantColor.Fprint(w, f.Chunk)
	case protocol.TypeStreamEnd:
		fmt.Fprint(w, "\n\n")
		if f.SubType == protocol.SubtypeStreamEndError {
			errorColor.Fprintf(w, "Error: %s\n", f.Text())
		}
	case protocol.TypeMessage:
		renderMessage(w, f)
	case protocol.TypeConnected:
		noticeColor.Fprintf(w, "Connected to %s\n", f.TargetID)
	case protocol.TypeUsersList:
		renderSessions(w, "Users", f.Users)
	case protocol.TypeListOperators:
		renderSessions(w, "Operators", f.Operators)
	case protocol.TypeSetName:
		noticeColor.Fprintf(w, "%s is now known as %s\n", f.ConversationID, f.Name)
	case protocol.TypeClientID:
		noticeColor.Fprintf(w, "Client id: %s\n", f.ClientID)
	case protocol.TypeError:
		errorColor.Fprintf(w, "Error: %s\n", f.Text())
	case protocol.TypeMessageSent:
	}
}

func renderMessage(w io.Writer, f protocol.Frame) {
	switch f.SubType {
	case protocol.SubtypeOperatorConnected:
		noticeColor.Fprintln(w, "An operator joined the conversation")
		return
	case protocol.SubtypeOperatorDisconnected:
		noticeColor.Fprintln(w, "Disconnected")
		return
	}

	turn, ok := f.Turn()
	if !ok {
		return
	}
	c := peerColor
	if turn.Role == chat.RoleAssistant {
		c = assistantColor
	}
	c.Fprintf(w, "\n%s: %s\n", turn.Role, turn.Content)
}

func renderSessions(w io.Writer, title string, sessions []chat.SessionInfo) {
	noticeColor.Fprintf(w, "%s:\n", title)
	if len(sessions) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, s := range sessions {
		name := s.Name
		if name == "" {
			name = "Anonymous"
		}
		line := fmt.Sprintf("  %s: %s", s.ID, name)
		if s.PairedWith != "" {
			line += " (busy)"
		}
		fmt.Fprintln(w, line)
	}
}
