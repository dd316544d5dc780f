package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyaneshwarpardhi/bandtree/internal/command"
	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
)

func TestCheck(t *testing.T) {
	cases := []struct {
		name    string
		cmd     command.Command
		wantErr bool
	}{
		{name: "add child", cmd: command.Command{Kind: command.AddChild, NodeID: "n", Direction: tree.Yes}},
		{name: "add child no direction", cmd: command.Command{Kind: command.AddChild, NodeID: "n"}, wantErr: true},
		{name: "set band bad direction", cmd: command.Command{Kind: command.SetBand, NodeID: "n", Direction: "left"}, wantErr: true},
		{name: "clear band", cmd: command.Command{Kind: command.SetBand, NodeID: "n", Direction: tree.No}},
		{name: "blank question allowed", cmd: command.Command{Kind: command.SetQuestion, NodeID: "n"}},
		{name: "delete", cmd: command.Command{Kind: command.DeleteSubtree, NodeID: "n"}},
		{name: "missing node", cmd: command.Command{Kind: command.DeleteSubtree}, wantErr: true},
		{name: "unknown kind", cmd: command.Command{Kind: "rename", NodeID: "n"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cmd.Check()
			if tc.wantErr {
				assert.ErrorIs(t, err, command.ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheck_KeepsDirectionError(t *testing.T) {
	c := command.Command{Kind: command.Detach, NodeID: "n", Direction: "up"}
	err := c.Check()
	assert.ErrorIs(t, err, command.ErrInvalid)
	assert.ErrorIs(t, err, tree.ErrInvalidDirection)
}

func TestMutates(t *testing.T) {
	assert.False(t, (&command.Command{Kind: command.DraftQuestion}).Mutates())
	assert.True(t, (&command.Command{Kind: command.SetQuestion}).Mutates())
}
