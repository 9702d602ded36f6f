package refcatalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdvance_FirstCommitInitializesMain(t *testing.T) {
	c := &Catalog{BranchTips: map[string]string{}}
	c.Advance("C1", "", "develop/", false)
	require.Equal(t, "main", c.Current())
	require.Equal(t, "C1", c.Branches()["main"])
}

func TestAdvance_ContinuesCurrentBranch(t *testing.T) {
	c := &Catalog{CurrentName: "main", BranchTips: map[string]string{"main": "C1"}}
	c.Advance("C2", "C1", "develop/", false)
	require.Equal(t, "main", c.Current())
	require.Equal(t, "C2", c.Branches()["main"])
}

func TestAdvance_DetachedReattachesToMatchingBranch(t *testing.T) {
	// After a detach (current == ""), a commit landing on a tip that still
	// matches a known branch reattaches to it instead of forking a new one.
	c := &Catalog{CurrentName: "", BranchTips: map[string]string{"main": "H0"}}
	c.Advance("C2", "H0", "develop/", false)
	require.Equal(t, "main", c.Current())
	require.Equal(t, "C2", c.Branches()["main"])
}

func TestAdvance_DetachReset(t *testing.T) {
	c := &Catalog{CurrentName: "main", BranchTips: map[string]string{"main": "H2"}}
	c.Advance("", "H0", "develop/", true)
	require.Equal(t, "", c.Current())
	require.Equal(t, "H0", c.Branches()["main"])
}

func TestAdvance_AllocatesDevelopBranchWhenDetachedAndNoMatch(t *testing.T) {
	// Mirrors scenario S5: jump(H0) detaches, main still points at H2, then a
	// new commit J1 lands on the detached HEAD (H0) which matches no branch tip.
	c := &Catalog{CurrentName: "", BranchTips: map[string]string{"main": "H2"}}
	c.Advance("J1", "H0", "develop/", false)
	require.Equal(t, "develop/0", c.Current())
	require.Equal(t, "J1", c.Branches()["develop/0"])
	require.Equal(t, "H2", c.Branches()["main"])
}

func TestAdvance_ClaimsEmptyMainTip(t *testing.T) {
	c := &Catalog{CurrentName: "", BranchTips: map[string]string{"main": ""}}
	c.Advance("C1", "", "develop/", false)
	require.Equal(t, "main", c.Current())
	require.Equal(t, "C1", c.Branches()["main"])
}

func TestAdvance_AllocatesSmallestUnusedDevelopIndex(t *testing.T) {
	c := &Catalog{CurrentName: "", BranchTips: map[string]string{"main": "H2", "develop/0": "X"}}
	c.Advance("J1", "H0", "develop/", false)
	require.Equal(t, "develop/1", c.Current())
}

func TestValidateAndRepair_PatchesEmptyTipAndResetsMissingCurrent(t *testing.T) {
	c := &Catalog{CurrentName: "ghost", BranchTips: map[string]string{"main": ""}}
	c.ValidateAndRepair("H5")
	require.Equal(t, "H5", c.Branches()["main"])
	require.Equal(t, "main", c.Current())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(dir)
	require.NoError(t, err)
	require.True(t, c.IsEmpty())

	c.Advance("C1", "", "develop/", false)
	require.NoError(t, c.Save())

	reloaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "main", reloaded.Current())
	require.Equal(t, "C1", reloaded.Branches()["main"])
	require.FileExists(t, filepath.Join(dir, FileName))
}
