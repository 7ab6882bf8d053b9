package registry

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	hub   = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	other = common.HexToAddress("0x0000000000000000000000000000000000000c03")
)

func newRegistry(t *testing.T) *Contract {
	t.Helper()
	c, err := New(admin)
	require.NoError(t, err)
	require.NoError(t, c.GrantHubRole(admin, hub))
	return c
}

func randomID(t *testing.T) [32]byte {
	t.Helper()
	var id [32]byte
	_, err := rand.Read(id[:])
	require.NoError(t, err)
	return id
}

func hashOf(data string) [32]byte {
	var h [32]byte
	copy(h[:], crypto.Keccak256([]byte(data)))
	return h
}

func TestNew_RejectsZeroAdmin(t *testing.T) {
	_, err := New(common.Address{})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestRegisterPassport(t *testing.T) {
	t.Run("registers and emits event", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		h := hashOf(`{"id":"test"}`)

		require.NoError(t, c.RegisterPassport(hub, id, h, "https://storage/passport.json"))
		assert.Equal(t, uint64(1), c.TotalPassports())

		events := c.Events()
		require.Len(t, events, 1)
		assert.Equal(t, EventRegistered, events[0].Type)
		assert.Equal(t, id, events[0].ID)
		assert.Equal(t, h, events[0].NewHash)
		assert.Equal(t, hub, events[0].NewOwner)
		assert.False(t, events[0].Timestamp.IsZero())
	})

	t.Run("stores record correctly", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		h := hashOf(`{"id":"test2"}`)
		require.NoError(t, c.RegisterPassport(hub, id, h, "uri"))

		rec, ok := c.GetPassport(id)
		require.True(t, ok)
		assert.Equal(t, h, rec.Hash)
		assert.Equal(t, hub, rec.Owner)
		assert.Equal(t, StatusActive, rec.Status)
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		require.NoError(t, c.RegisterPassport(hub, id, hashOf("data"), "uri"))

		err := c.RegisterPassport(hub, id, hashOf("other"), "uri")
		assert.ErrorIs(t, err, ErrPassportExists)
	})

	t.Run("rejects reused hash under a different id", func(t *testing.T) {
		c := newRegistry(t)
		h := hashOf("duplicate")
		require.NoError(t, c.RegisterPassport(hub, randomID(t), h, "uri"))

		err := c.RegisterPassport(hub, randomID(t), h, "uri")
		assert.ErrorIs(t, err, ErrHashExists)
	})

	t.Run("rejects caller without hub role", func(t *testing.T) {
		c := newRegistry(t)
		err := c.RegisterPassport(other, randomID(t), hashOf("x"), "uri")
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("rejects zero id and zero hash", func(t *testing.T) {
		c := newRegistry(t)
		assert.ErrorIs(t, c.RegisterPassport(hub, [32]byte{}, hashOf("x"), "uri"), ErrInvalidPassportID)
		assert.ErrorIs(t, c.RegisterPassport(hub, randomID(t), [32]byte{}, "uri"), ErrInvalidHash)
	})
}

func TestRegisterPassportBatch(t *testing.T) {
	t.Run("registers all triples", func(t *testing.T) {
		c := newRegistry(t)
		ids := [][32]byte{randomID(t), randomID(t), randomID(t)}
		hashes := [][32]byte{hashOf("passport-0"), hashOf("passport-1"), hashOf("passport-2")}
		uris := []string{"uri-0", "uri-1", "uri-2"}

		require.NoError(t, c.RegisterPassportBatch(hub, ids, hashes, uris))
		assert.Equal(t, uint64(3), c.TotalPassports())
	})

	t.Run("reverts entirely on one duplicate", func(t *testing.T) {
		c := newRegistry(t)
		existing := randomID(t)
		require.NoError(t, c.RegisterPassport(hub, existing, hashOf("taken"), "uri"))

		ids := [][32]byte{randomID(t), existing, randomID(t)}
		hashes := [][32]byte{hashOf("b-0"), hashOf("b-1"), hashOf("b-2")}
		uris := []string{"u", "u", "u"}

		err := c.RegisterPassportBatch(hub, ids, hashes, uris)
		assert.ErrorIs(t, err, ErrPassportExists)
		assert.Equal(t, uint64(1), c.TotalPassports())
		for _, id := range []([32]byte){ids[0], ids[2]} {
			_, ok := c.GetPassport(id)
			assert.False(t, ok)
		}
	})

	t.Run("reverts entirely on intra-batch duplicate id", func(t *testing.T) {
		c := newRegistry(t)
		dup := randomID(t)
		ids := [][32]byte{dup, dup}
		hashes := [][32]byte{hashOf("d-0"), hashOf("d-1")}
		uris := []string{"u", "u"}

		err := c.RegisterPassportBatch(hub, ids, hashes, uris)
		assert.ErrorIs(t, err, ErrPassportExists)
		assert.Equal(t, uint64(0), c.TotalPassports())
	})

	t.Run("rejects length mismatch", func(t *testing.T) {
		c := newRegistry(t)
		err := c.RegisterPassportBatch(hub, [][32]byte{randomID(t)}, nil, nil)
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})
}

func TestVerifyPassport(t *testing.T) {
	c := newRegistry(t)
	id := randomID(t)
	h := hashOf("canon")
	require.NoError(t, c.RegisterPassport(hub, id, h, "uri"))

	assert.True(t, c.VerifyPassport(id, h))
	assert.False(t, c.VerifyPassport(id, hashOf("tampered")))
	assert.False(t, c.VerifyPassport(randomID(t), h))
}

func TestUpdateStatus(t *testing.T) {
	t.Run("owner can set any enumerated status", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		require.NoError(t, c.RegisterPassport(hub, id, hashOf("s"), "uri"))

		require.NoError(t, c.UpdateStatus(hub, id, StatusListed))
		rec, _ := c.GetPassport(id)
		assert.Equal(t, StatusListed, rec.Status)

		// No transition ordering: decommissioned straight back to active.
		require.NoError(t, c.UpdateStatus(hub, id, StatusDecommissioned))
		require.NoError(t, c.UpdateStatus(hub, id, StatusActive))
	})

	t.Run("emits before and after values", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		require.NoError(t, c.RegisterPassport(hub, id, hashOf("s1"), "uri"))
		require.NoError(t, c.UpdateStatus(hub, id, StatusListed))

		events := c.Events()
		last := events[len(events)-1]
		assert.Equal(t, EventStatusChanged, last.Type)
		assert.Equal(t, StatusActive, last.OldStatus)
		assert.Equal(t, StatusListed, last.NewStatus)
	})

	t.Run("non-owner cannot update", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		require.NoError(t, c.RegisterPassport(hub, id, hashOf("s2"), "uri"))
		assert.ErrorIs(t, c.UpdateStatus(other, id, StatusListed), ErrNotOwner)
	})

	t.Run("admin can update any passport", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		require.NoError(t, c.RegisterPassport(hub, id, hashOf("s3"), "uri"))
		assert.NoError(t, c.UpdateStatus(admin, id, StatusDecommissioned))
	})

	t.Run("rejects unknown passport and invalid status", func(t *testing.T) {
		c := newRegistry(t)
		assert.ErrorIs(t, c.UpdateStatus(hub, randomID(t), StatusListed), ErrUnknownPassport)

		id := randomID(t)
		require.NoError(t, c.RegisterPassport(hub, id, hashOf("s4"), "uri"))
		assert.ErrorIs(t, c.UpdateStatus(hub, id, Status(99)), ErrInvalidStatus)
	})
}

func TestUpdatePassportHash(t *testing.T) {
	t.Run("amendment swaps the reverse index", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		oldHash := hashOf("v1")
		newHash := hashOf("v2")
		require.NoError(t, c.RegisterPassport(hub, id, oldHash, "uri"))

		require.NoError(t, c.UpdatePassportHash(hub, id, newHash))

		assert.True(t, c.VerifyPassport(id, newHash))
		assert.False(t, c.VerifyPassport(id, oldHash))
		assert.Equal(t, [32]byte{}, c.GetPassportByHash(oldHash))
		assert.Equal(t, id, c.GetPassportByHash(newHash))
	})

	t.Run("preserves owner and status", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		require.NoError(t, c.RegisterPassport(hub, id, hashOf("v1b"), "uri"))
		require.NoError(t, c.UpdateStatus(hub, id, StatusInstalled))

		require.NoError(t, c.UpdatePassportHash(hub, id, hashOf("v2b")))
		rec, _ := c.GetPassport(id)
		assert.Equal(t, hub, rec.Owner)
		assert.Equal(t, StatusInstalled, rec.Status)
	})

	t.Run("rejects a hash held by another passport", func(t *testing.T) {
		c := newRegistry(t)
		a := randomID(t)
		b := randomID(t)
		require.NoError(t, c.RegisterPassport(hub, a, hashOf("a"), "uri"))
		require.NoError(t, c.RegisterPassport(hub, b, hashOf("b"), "uri"))

		assert.ErrorIs(t, c.UpdatePassportHash(hub, a, hashOf("b")), ErrHashExists)
	})

	t.Run("non-owner cannot amend", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		require.NoError(t, c.RegisterPassport(hub, id, hashOf("v1c"), "uri"))
		assert.ErrorIs(t, c.UpdatePassportHash(other, id, hashOf("v2c")), ErrNotOwner)
	})
}

func TestTransferPassport(t *testing.T) {
	t.Run("owner can transfer", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		h := hashOf("t")
		require.NoError(t, c.RegisterPassport(hub, id, h, "uri"))

		require.NoError(t, c.TransferPassport(hub, id, other))
		rec, _ := c.GetPassport(id)
		assert.Equal(t, other, rec.Owner)
		assert.Equal(t, h, rec.Hash)
		assert.Equal(t, StatusActive, rec.Status)
	})

	t.Run("non-owner cannot transfer", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		require.NoError(t, c.RegisterPassport(hub, id, hashOf("t2"), "uri"))
		assert.ErrorIs(t, c.TransferPassport(other, id, other), ErrNotOwner)
	})

	t.Run("rejects zero new owner", func(t *testing.T) {
		c := newRegistry(t)
		id := randomID(t)
		require.NoError(t, c.RegisterPassport(hub, id, hashOf("t3"), "uri"))
		assert.ErrorIs(t, c.TransferPassport(hub, id, common.Address{}), ErrInvalidAddress)
	})
}

func TestPause(t *testing.T) {
	c := newRegistry(t)
	id := randomID(t)
	h := hashOf("p")
	require.NoError(t, c.RegisterPassport(hub, id, h, "uri"))

	require.NoError(t, c.Pause(admin))

	assert.ErrorIs(t, c.RegisterPassport(hub, randomID(t), hashOf("p2"), "uri"), ErrPaused)
	assert.ErrorIs(t, c.UpdateStatus(hub, id, StatusListed), ErrPaused)
	assert.ErrorIs(t, c.UpdatePassportHash(hub, id, hashOf("p3")), ErrPaused)
	assert.ErrorIs(t, c.TransferPassport(hub, id, other), ErrPaused)

	// Reads stay open while paused.
	assert.True(t, c.VerifyPassport(id, h))
	rec, ok := c.GetPassport(id)
	assert.True(t, ok)
	assert.Equal(t, h, rec.Hash)

	require.NoError(t, c.Unpause(admin))
	assert.NoError(t, c.RegisterPassport(hub, randomID(t), hashOf("p4"), "uri"))

	assert.ErrorIs(t, c.Pause(hub), ErrNotAdmin)
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, err := New(admin, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	require.NoError(t, c.GrantHubRole(admin, hub))
	require.NoError(t, c.RegisterPassport(hub, randomID(t), hashOf("clock"), "uri"))

	events := c.Events()
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
}
