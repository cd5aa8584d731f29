package driver

import "testing"

func TestCommandNumbers(t *testing.T) {
	tests := []struct {
		cmd  Command
		want uint32
		dir  uint32
		nr   uint32
		size uint32
	}{
		{CmdRand32, 0x80047101, iocRead, 1, 4},
		{CmdSeed, 0x40047101, iocWrite, 1, 4},
		{CmdRand64, 0x80087102, iocRead, 2, 8},
	}
	for _, tt := range tests {
		if uint32(tt.cmd) != tt.want {
			t.Errorf("%s = %#x, want %#x", tt.cmd, uint32(tt.cmd), tt.want)
		}
		if tt.cmd.Dir() != tt.dir {
			t.Errorf("%s.Dir() = %d, want %d", tt.cmd, tt.cmd.Dir(), tt.dir)
		}
		if tt.cmd.Type() != 'q' {
			t.Errorf("%s.Type() = %q, want 'q'", tt.cmd, rune(tt.cmd.Type()))
		}
		if tt.cmd.Nr() != tt.nr {
			t.Errorf("%s.Nr() = %d, want %d", tt.cmd, tt.cmd.Nr(), tt.nr)
		}
		if tt.cmd.Size() != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.cmd, tt.cmd.Size(), tt.size)
		}
	}
}

func TestCommandKind(t *testing.T) {
	tests := []struct {
		cmd  Command
		kind Kind
		str  string
	}{
		{CmdSeed, KindSeed, "seed"},
		{CmdRand32, KindRand32, "rand32"},
		{CmdRand64, KindRand64, "rand64"},
		{0, KindUnknown, "0x00000000"},
		{ioc(iocNone, rngType, 3, 0), KindUnknown, "0x00007103"},
		{iow(rngType, 2, 8), KindUnknown, "0x40087102"},
	}
	for _, tt := range tests {
		if got := tt.cmd.Kind(); got != tt.kind {
			t.Errorf("Command(%#x).Kind() = %v, want %v", uint32(tt.cmd), got, tt.kind)
		}
		if got := tt.cmd.String(); got != tt.str {
			t.Errorf("Command(%#x).String() = %q, want %q", uint32(tt.cmd), got, tt.str)
		}
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		kind  Kind
		size  int
		reads bool
		cmd   Command
	}{
		{KindSeed, 4, false, CmdSeed},
		{KindRand32, 4, true, CmdRand32},
		{KindRand64, 8, true, CmdRand64},
		{KindUnknown, 0, false, 0},
	}
	for _, tt := range tests {
		if got := tt.kind.ArgSize(); got != tt.size {
			t.Errorf("%v.ArgSize() = %d, want %d", tt.kind, got, tt.size)
		}
		if got := tt.kind.Reads(); got != tt.reads {
			t.Errorf("%v.Reads() = %v, want %v", tt.kind, got, tt.reads)
		}
		if got := tt.kind.Command(); got != tt.cmd {
			t.Errorf("%v.Command() = %v, want %v", tt.kind, got, tt.cmd)
		}
		if tt.kind == KindUnknown {
			continue
		}
		if got, ok := ParseKind(tt.kind.String()); !ok || got != tt.kind {
			t.Errorf("ParseKind(%q) = %v, %v", tt.kind.String(), got, ok)
		}
	}
	if _, ok := ParseKind("unknown"); ok {
		t.Error("ParseKind(\"unknown\") should fail")
	}
}

func TestAttachStepString(t *testing.T) {
	tests := []struct {
		step AttachStep
		want string
	}{
		{StepEnable, "enable"},
		{StepClaim, "claim"},
		{StepMap, "map"},
		{AttachStep(0), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.step.String(); got != tt.want {
			t.Errorf("AttachStep(%d).String() = %q, want %q", tt.step, got, tt.want)
		}
	}
}
