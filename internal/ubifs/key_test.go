package ubifs

import "testing"

func TestKey_Less(t *testing.T) {
	cases := []struct {
		a, b Key
		want bool
	}{
		{InodeKey(1), InodeKey(2), true},
		{InodeKey(2), InodeKey(1), false},
		{InodeKey(5), DataKey(5, 0), true},
		{DataKey(5, 10), DataKey(5, 20), true},
		{DataKey(5, 20), DataKey(5, 10), false},
	}
	for _, c := range cases {
		if got := c.a.Less(c.b); got != c.want {
			t.Errorf("%+v.Less(%+v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestDentryRangeKey_ContainsAllHashes(t *testing.T) {
	lo, hi := DentryRangeKey(7)
	k := DentryKey(7, "a.txt")
	if k.Less(lo) || !k.Less(hi) {
		t.Fatalf("dentry key %+v not within range [%+v, %+v)", k, lo, hi)
	}
	if lo.Type != KeyTypeDentry || hi.Type != KeyTypeDentry {
		t.Fatalf("range bounds must stay within the dentry key type")
	}
}
