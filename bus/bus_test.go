package bus

import "testing"

func TestIDString(t *testing.T) {
	tests := []struct {
		id   ID
		want string
	}{
		{ID{0x1234, 0xcafe}, "1234:cafe"},
		{ID{0x8086, 0x0001}, "8086:0001"},
		{ID{}, "0000:0000"},
	}
	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("ID%v.String() = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestResourceIsMem(t *testing.T) {
	tests := []struct {
		name string
		r    Resource
		want bool
	}{
		{"memory", Resource{Start: 0xfebf0000, Length: 0x1000, Flags: 0x40200}, true},
		{"io", Resource{Start: 0xc000, Length: 0x20, Flags: ResourceIO}, false},
		{"unimplemented", Resource{}, false},
		{"zero length memory", Resource{Flags: ResourceMem}, false},
	}
	for _, tt := range tests {
		if got := tt.r.IsMem(); got != tt.want {
			t.Errorf("%s: IsMem() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCandidateResource(t *testing.T) {
	c := Candidate{}
	c.Resources[0] = Resource{Start: 0x1000, Length: 0x100, Flags: ResourceMem}

	if got := c.Resource(0); got.Start != 0x1000 {
		t.Errorf("Resource(0).Start = %#x, want 0x1000", got.Start)
	}
	if got := c.Resource(-1); got != (Resource{}) {
		t.Errorf("Resource(-1) = %+v, want zero", got)
	}
	if got := c.Resource(MaxBARs); got != (Resource{}) {
		t.Errorf("Resource(MaxBARs) = %+v, want zero", got)
	}
}

func TestRegionAndActionString(t *testing.T) {
	r := &Region{Address: "0000:00:04.0", BAR: 0}
	if got := r.String(); got != "0000:00:04.0/bar0" {
		t.Errorf("Region.String() = %q", got)
	}
	if ActionAdd.String() != "add" || ActionRemove.String() != "remove" || Action(0).String() != "unknown" {
		t.Error("unexpected Action strings")
	}
}
