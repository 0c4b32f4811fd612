package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/krich11/mls-delivery-service/internal/proto"
)

func TestGroupsCreate(t *testing.T) {
	req := require.New(t)
	groups := NewGroups()

	members, err := groups.Create("g1", "alice")
	req.NoError(err)
	req.Equal([]string{"alice"}, members)

	_, err = groups.Create("g1", "bob")
	req.ErrorIs(err, ErrGroupExists)

	// The failed create did not disturb the existing group.
	members, err = groups.Members("g1")
	req.NoError(err)
	req.Equal([]string{"alice"}, members)
}

func TestGroupsJoin(t *testing.T) {
	req := require.New(t)
	groups := NewGroups()

	_, err := groups.Join("nope", "dan")
	req.ErrorIs(err, ErrNotFound)

	_, err = groups.Create("g1", "alice")
	req.NoError(err)

	members, err := groups.Join("g1", "bob")
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, members)

	// Re-joining is a no-op success.
	members, err = groups.Join("g1", "bob")
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, members)

	ok, err := groups.IsMember("g1", "bob")
	req.NoError(err)
	req.True(ok)

	ok, err = groups.IsMember("g1", "carol")
	req.NoError(err)
	req.False(ok)
}

func TestGroupsAppend(t *testing.T) {
	req := require.New(t)
	groups := NewGroups()

	_, err := groups.Append("nope", "alice", proto.MessageApplication, []byte{1})
	req.ErrorIs(err, ErrNotFound)

	_, err = groups.Create("g1", "alice")
	req.NoError(err)
	_, err = groups.Join("g1", "bob")
	req.NoError(err)

	_, err = groups.Append("g1", "carol", proto.MessageApplication, []byte{1})
	req.ErrorIs(err, ErrNotMember)

	n, err := groups.LogLen("g1")
	req.NoError(err)
	req.Zero(n)

	members, err := groups.Append("g1", "alice", proto.MessageApplication, []byte{9, 9})
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, members)

	n, err = groups.LogLen("g1")
	req.NoError(err)
	req.Equal(1, n)
}

func TestGroupsSnapshotIsDetached(t *testing.T) {
	req := require.New(t)
	groups := NewGroups()

	_, err := groups.Create("g1", "alice")
	req.NoError(err)

	members, err := groups.Members("g1")
	req.NoError(err)
	members[0] = "mallory"

	again, err := groups.Members("g1")
	req.NoError(err)
	req.Equal([]string{"alice"}, again)
}
