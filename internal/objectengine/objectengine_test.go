package objectengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlug is a minimal Plug recording every lifecycle call it receives, for
// asserting the registry drives the vtable correctly.
type fakePlug struct {
	label string
	calls *[]string
}

type fakeMembuf struct {
	obj *Object
}

func (p *fakePlug) Label() string { return p.label }

func (p *fakePlug) Create() (Membuf, error) {
	*p.calls = append(*p.calls, "create")
	return &fakeMembuf{}, nil
}

func (p *fakePlug) Attach(m Membuf, obj *Object) {
	*p.calls = append(*p.calls, "attach")
	m.(*fakeMembuf).obj = obj
}

func (p *fakePlug) Close(m Membuf) error    { *p.calls = append(*p.calls, "close"); return nil }
func (p *fakePlug) Commit(m Membuf) error   { *p.calls = append(*p.calls, "commit"); return nil }
func (p *fakePlug) Rollback(m Membuf) error { *p.calls = append(*p.calls, "rollback"); return nil }
func (p *fakePlug) Sync(m Membuf) error     { *p.calls = append(*p.calls, "sync"); return nil }
func (p *fakePlug) Unlink(m Membuf) error   { *p.calls = append(*p.calls, "unlink"); return nil }

func (p *fakePlug) Apply(m Membuf, mutation any) error {
	*p.calls = append(*p.calls, "apply:"+mutation.(string))
	return nil
}

func (p *fakePlug) Revert(m Membuf, mutation any) error {
	*p.calls = append(*p.calls, "revert:"+mutation.(string))
	return nil
}

func TestCreateAttachesObjectAndRegistersLabel(t *testing.T) {
	var calls []string
	r := NewRegistry()
	r.Register(&fakePlug{label: "fake", calls: &calls})

	obj, err := r.Create("mything", "fake")
	require.NoError(t, err)
	assert.Equal(t, "mything", obj.Label)
	assert.Equal(t, "fake", obj.Type)
	assert.NotZero(t, obj.ID)
	assert.Equal(t, []string{"create", "attach"}, calls)
	assert.Same(t, obj, obj.Membuf.(*fakeMembuf).obj)
}

func TestCreateDuplicateLabelFails(t *testing.T) {
	var calls []string
	r := NewRegistry()
	r.Register(&fakePlug{label: "fake", calls: &calls})

	_, err := r.Create("dup", "fake")
	require.NoError(t, err)
	_, err = r.Create("dup", "fake")
	require.Error(t, err)
	var existsErr *ErrExists
	assert.ErrorAs(t, err, &existsErr)
}

func TestCreateUnknownTypeFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("x", "nonesuch")
	require.Error(t, err)
	var unknownErr *ErrUnknownType
	assert.ErrorAs(t, err, &unknownErr)
}

func TestOpenCloseUnlinkNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Open("missing")
	require.Error(t, err)
	var notFound *ErrNotFound
	assert.ErrorAs(t, err, &notFound)

	err = r.Close("missing")
	require.ErrorAs(t, err, &notFound)

	err = r.Unlink("missing")
	require.ErrorAs(t, err, &notFound)
}

func TestCloseRemovesFromRegistry(t *testing.T) {
	var calls []string
	r := NewRegistry()
	r.Register(&fakePlug{label: "fake", calls: &calls})
	_, err := r.Create("a", "fake")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.Close("a"))
	assert.Equal(t, 0, r.Len())
	_, err = r.Open("a")
	require.Error(t, err)
	assert.Contains(t, calls, "close")
}

func TestUnlinkRemovesFromRegistry(t *testing.T) {
	var calls []string
	r := NewRegistry()
	r.Register(&fakePlug{label: "fake", calls: &calls})
	_, err := r.Create("a", "fake")
	require.NoError(t, err)

	require.NoError(t, r.Unlink("a"))
	assert.Equal(t, 0, r.Len())
	assert.Contains(t, calls, "unlink")
}

func TestObjectApplyRevertCommitRollbackDelegateToPlug(t *testing.T) {
	var calls []string
	r := NewRegistry()
	r.Register(&fakePlug{label: "fake", calls: &calls})
	obj, err := r.Create("a", "fake")
	require.NoError(t, err)
	calls = nil

	require.NoError(t, obj.ApplyAtom("m1"))
	require.NoError(t, obj.RevertAtom("m1"))
	require.NoError(t, obj.CommitObject())
	require.NoError(t, obj.RollbackObject())
	assert.Equal(t, []string{"apply:m1", "revert:m1", "commit", "rollback"}, calls)
}
