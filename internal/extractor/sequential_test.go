package extractor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

// enumObject renders {first:0,Item1:1,...} with n entries in total.
func enumObject(first string, n int) (string, []string) {
	names := []string{first}
	var b strings.Builder
	fmt.Fprintf(&b, "{%s:0", first)
	for i := 1; i < n; i++ {
		name := fmt.Sprintf("Item%d", i)
		names = append(names, name)
		fmt.Fprintf(&b, ",%s:%d", name, i)
	}
	b.WriteString("}")
	return b.String(), names
}

func TestScanSequential_ReadsContiguousIDs(t *testing.T) {
	obj, want := enumObject("Unloaded", 150)
	text := `var a=1;var b=` + obj + `;function f(){}`
	start := strings.Index(text, "Unloaded")

	got := ScanSequential(text, start, DefaultSequentialLimits())
	if diff := cmp.Diff(want, got.Names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestScanSequential_QuotedNamesAndWhitespace(t *testing.T) {
	var b strings.Builder
	b.WriteString(`"Unloaded": 0`)
	for i := 1; i < 120; i++ {
		fmt.Fprintf(&b, ",\n  \"Block %d\" : %d", i, i)
	}
	got := ScanSequential(b.String(), 0, DefaultSequentialLimits())
	require.Len(t, got.Names, 120)
	assert.Equal(t, "Unloaded", got.Names[0])
	assert.Equal(t, "Block 119", got.Names[119])
}

func TestScanSequential_AliasesCollapse(t *testing.T) {
	obj, _ := enumObject("Unloaded", 130)
	// a second name for id 5 right after the first one
	obj = strings.Replace(obj, ",Item5:5,", ",Item5:5,OldItem5:5,", 1)

	got := ScanSequential(obj, 1, DefaultSequentialLimits())
	require.Len(t, got.Names, 130)
	assert.NotContains(t, got.Names, "OldItem5")
	assert.Equal(t, "Item6", got.Names[6])
}

func TestScanSequential_SkipsOutOfOrderEntries(t *testing.T) {
	obj, _ := enumObject("Unloaded", 130)
	obj = strings.Replace(obj, ",Item9:9,", ",Item9:9,Q:77,", 1)

	got := ScanSequential(obj, 1, DefaultSequentialLimits())
	require.Len(t, got.Names, 130)
	assert.NotContains(t, got.Names, "Q")
}

func TestScanSequential_StopsAfterConsecutiveFailures(t *testing.T) {
	obj, _ := enumObject("Unloaded", 130)
	// more than ten characters that cannot start an entry
	obj = strings.Replace(obj, ",Item50:50,", ",Item50:50/*ignored-gap*/,", 1)

	got := ScanSequential(obj, 1, DefaultSequentialLimits())
	assert.Nil(t, got.Names, "51 entries is below the minimum")

	lim := DefaultSequentialLimits()
	lim.MinEntries = 10
	got = ScanSequential(obj, 1, lim)
	assert.Len(t, got.Names, 51)
}

func TestScanSequential_MaxEntries(t *testing.T) {
	obj, _ := enumObject("Unloaded", 400)
	lim := DefaultSequentialLimits()
	lim.MaxEntries = 150

	got := ScanSequential(obj, 1, lim)
	assert.Len(t, got.Names, 151)
}

func TestScanSequential_SoftCap(t *testing.T) {
	obj, _ := enumObject("Unloaded", 400)
	// five unparseable characters after every tenth entry from id 209 on
	for id := 209; id < 400; id += 10 {
		entry := fmt.Sprintf(",Item%d:%d", id, id)
		obj = strings.Replace(obj, entry+",", entry+"/*j*/,", 1)
	}

	// four gaps add up to 20 failures; the fifth crosses the cap
	got := ScanSequential(obj, 1, DefaultSequentialLimits())
	require.Len(t, got.Names, 250)
	assert.Equal(t, "Item249", got.Names[249])

	lim := DefaultSequentialLimits()
	lim.SoftCapFailures = 1000
	got = ScanSequential(obj, 1, lim)
	assert.Len(t, got.Names, 400)

	lim = DefaultSequentialLimits()
	lim.SoftCapEntries = 300
	got = ScanSequential(obj, 1, lim)
	assert.Len(t, got.Names, 301)
}

func TestScanSequential_BelowMinimum(t *testing.T) {
	obj, _ := enumObject("Unloaded", 99)
	got := ScanSequential(obj, 1, DefaultSequentialLimits())
	assert.Nil(t, got.Names)

	obj, _ = enumObject("Unloaded", 100)
	got = ScanSequential(obj, 1, DefaultSequentialLimits())
	assert.Len(t, got.Names, 100)
}

func TestAnchorStrategy(t *testing.T) {
	anchor, err := NewAnchorStrategy(DefaultCatalog(), DefaultSequentialLimits())
	require.NoError(t, err)

	t.Run("bare key", func(t *testing.T) {
		obj, want := enumObject("Unloaded", 140)
		res := anchor.Extract("x=" + obj)
		require.True(t, res.OK())
		assert.Equal(t, want, res.Names)
		assert.Equal(t, StrategyAnchor, res.Strategy)
	})

	t.Run("quoted key", func(t *testing.T) {
		obj, want := enumObject("Unloaded", 140)
		obj = strings.Replace(obj, "{Unloaded:0", `{"Unloaded":0`, 1)
		res := anchor.Extract("x=" + obj)
		require.True(t, res.OK())
		assert.Equal(t, want, res.Names)
	})

	t.Run("no sentinel", func(t *testing.T) {
		obj, _ := enumObject("Air", 140)
		res := anchor.Extract(obj)
		assert.False(t, res.OK())
		assert.ErrorIs(t, res.Err, plugin.ErrParseNoResult)
	})

	t.Run("sentinel with a short run", func(t *testing.T) {
		obj, _ := enumObject("Unloaded", 20)
		res := anchor.Extract(obj)
		assert.ErrorIs(t, res.Err, plugin.ErrParseNoResult)
	})
}

func TestHeuristicStrategy_KeepsLongestRun(t *testing.T) {
	short, _ := enumObject("Zero", 110)
	long, want := enumObject("Air", 180)
	text := `var n={a:0,b:7};var s=` + short + `;var l=` + long + `;`

	res := NewHeuristicStrategy(DefaultSequentialLimits()).Extract(text)
	require.True(t, res.OK())
	assert.Equal(t, want, res.Names)
}

func TestHeuristicStrategy_NothingPlausible(t *testing.T) {
	res := NewHeuristicStrategy(DefaultSequentialLimits()).Extract(`var a={x:0,y:1},b={z:0};`)
	assert.ErrorIs(t, res.Err, plugin.ErrParseNoResult)
}
