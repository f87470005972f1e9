package supervisor

// FakeIdentity is a test double that records identity changes instead of
// making them.
type FakeIdentity struct {
	UID, GID int

	// LookupError, SetgroupsError, SetgidError and SetuidError, if set, are
	// returned by the matching call.
	LookupError    error
	SetgroupsError error
	SetgidError    error
	SetuidError    error

	// Calls records the order of identity changes.
	Calls []string
}

// NewFakeIdentity returns a FakeIdentity resolving to uid/gid 65534.
func NewFakeIdentity() *FakeIdentity {
	return &FakeIdentity{UID: 65534, GID: 65534}
}

func (f *FakeIdentity) Lookup(userName, groupName string) (int, int, error) {
	if f.LookupError != nil {
		return 0, 0, f.LookupError
	}
	return f.UID, f.GID, nil
}

func (f *FakeIdentity) Setgroups(gids []int) error {
	f.Calls = append(f.Calls, "setgroups")
	return f.SetgroupsError
}

func (f *FakeIdentity) Setgid(gid int) error {
	f.Calls = append(f.Calls, "setgid")
	return f.SetgidError
}

func (f *FakeIdentity) Setuid(uid int) error {
	f.Calls = append(f.Calls, "setuid")
	return f.SetuidError
}
