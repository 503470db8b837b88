package loader_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/device"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/loader"
)

const sceneXML = `<?xml version="1.0" encoding="utf-8"?>
<scene_config>
  <mode name="normal">
    <scene name="interaction_launch">
      <scene_set path="/dev" file="cluster0_freq_max" value="1BC560"/>
      <scene_set path="/dev" file="cluster0_freq_min" value="1BC560"/>
      <scene_set path="subsys" file="cpuhotplug" value="boost"/>
      <scene_set path="/sys/class/devfreq/scene-frequency/sprd_governor" file="scene_boost_dfs" value="max"/>
    </scene>
    <scene name="vsync">
      <scene_set path="/sys/module/sched" file="boost" value="1"/>
    </scene>
    <scene name="idle"/>
  </mode>
  <mode name="performance">
    <scene name="benchmark">
      <scene_set path="/dev" file="cluster1_freq_max" value="1EF1E0"/>
    </scene>
  </mode>
</scene_config>
`

const resourceXML = `<?xml version="1.0" encoding="utf-8"?>
<resource_config>
  <file path="/dev" file="cluster0_freq_max">
    <attr name="def_value" value="1BC560"/>
  </file>
  <file path="/dev" file="cluster0_freq_min">
    <attr name="min_value" value="0"/>
  </file>
  <file path="/sys/module/sched" file="boost" no_has_def="1">
    <attr name="def_value" value="0"/>
  </file>
  <file path="subsys" file="cpuhotplug"/>
  <subsys name="cpuhotplug">
    <inode path="/sys/devices/system/cpu/cpuhotplug" file="cluster1_core_max_limit"/>
    <conf name="boost">
      <conf_set path="/sys/devices/system/cpu/cpuhotplug" file="cluster1_core_min_limit" value="4"/>
      <conf_set path="/sys/devices/system/cpu/cpuhotplug" file="cluster1_core_max_limit" value="4"/>
    </conf>
    <conf name="powersave">
      <conf_set path="/sys/devices/system/cpu/cpuhotplug" file="cluster1_core_max_limit" value="2"/>
    </conf>
  </subsys>
</resource_config>
`

const sceneIDText = `# scene ids
0x7f000102 0x00000000 interaction_launch
0x00000001 0x00000000 vsync
0x00000099 0x00000000 not_in_normal_mode
garbage line
`

type fakeReader struct {
	values map[string]string
	reads  []string
	err    error
}

func (f *fakeReader) ReadValue(_ context.Context, path string) (string, error) {
	f.reads = append(f.reads, path)
	if f.err != nil {
		return "", f.err
	}
	return f.values[path], nil
}

func newFreqReader() *fakeReader {
	return &fakeReader{values: map[string]string{
		"/sys/class/devfreq/scene-frequency/sprd_governor/ddrinfo_freq_table": "256 384 512 768 933 \r\n",
	}}
}

func parse(t *testing.T, docs loader.Documents, r loader.DeviceReader) *device.Model {
	t.Helper()
	m := device.NewModel(device.Identity{Serial: "SER"})
	require.NoError(t, loader.NewParser(r).Parse(context.Background(), docs, m))
	return m
}

func defaultDocs() loader.Documents {
	return loader.Documents{
		Scene:    []byte(sceneXML),
		Resource: []byte(resourceXML),
		SceneID:  []byte(sceneIDText),
	}
}

func TestParseScenesFromNormalModeOnly(t *testing.T) {
	m := parse(t, defaultDocs(), newFreqReader())

	var names []string
	for _, s := range m.Scenes() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"interaction_launch", "vsync", "idle"}, names)

	_, ok := m.Scene("benchmark")
	assert.False(t, ok, "scenes of other modes must be ignored")
}

func TestParseSceneTunables(t *testing.T) {
	m := parse(t, defaultDocs(), newFreqReader())

	launch, ok := m.Scene("interaction_launch")
	require.True(t, ok)

	assert.Equal(t, []device.Tunable{
		{Path: "/dev/cluster0_freq_max", Value: "1BC560"},
		{Path: "/dev/cluster0_freq_min", Value: "1BC560"},
		{Path: "/sys/devices/system/cpu/cpuhotplug/cluster1_core_min_limit", Value: "4"},
		{Path: "/sys/devices/system/cpu/cpuhotplug/cluster1_core_max_limit", Value: "4"},
		{Path: "/sys/class/devfreq/scene-frequency/sprd_governor/ddrinfo_cur_freq", Value: "933"},
	}, launch.Tunables)
	assert.Equal(t, device.Success, launch.Result)
}

func TestParseConfigQuantityMatchesTunables(t *testing.T) {
	m := parse(t, defaultDocs(), newFreqReader())

	for _, s := range m.Scenes() {
		if s.ConfigQuantity != 0 {
			assert.Equal(t, len(s.Tunables), s.ConfigQuantity, "scene %s", s.Name)
		}
	}

	idle, ok := m.Scene("idle")
	require.True(t, ok)
	assert.Equal(t, 0, idle.ConfigQuantity)
	assert.Empty(t, idle.Tunables)
}

func TestParseBoostDFSResolvesMax(t *testing.T) {
	r := newFreqReader()
	m := parse(t, defaultDocs(), r)

	launch, _ := m.Scene("interaction_launch")
	last := launch.Tunables[len(launch.Tunables)-1]
	assert.Equal(t, "933", last.Value)
	assert.NotEqual(t, "max", last.Value)
	assert.Equal(t, []string{"/sys/class/devfreq/scene-frequency/sprd_governor/ddrinfo_freq_table"}, r.reads)
}

func TestParseBoostDFSKeepsExplicitFrequency(t *testing.T) {
	docs := defaultDocs()
	docs.Scene = []byte(`<c><mode name="normal"><scene name="s">
<scene_set path="/gov" file="scene_boost_dfs" value="512"/>
</scene></mode></c>`)
	r := newFreqReader()
	m := parse(t, docs, r)

	s, _ := m.Scene("s")
	assert.Equal(t, []device.Tunable{{Path: "/gov/ddrinfo_cur_freq", Value: "512"}}, s.Tunables)
	assert.Empty(t, r.reads)
}

func TestParseBoostDFSErrors(t *testing.T) {
	docs := defaultDocs()

	t.Run("no reader", func(t *testing.T) {
		err := loader.NewParser(nil).Parse(context.Background(), docs, device.NewModel(device.Identity{}))
		var pe *loader.ParseError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("empty table", func(t *testing.T) {
		r := &fakeReader{values: map[string]string{}}
		err := loader.NewParser(r).Parse(context.Background(), docs, device.NewModel(device.Identity{}))
		var pe *loader.ParseError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("read failure", func(t *testing.T) {
		boom := errors.New("device offline")
		r := &fakeReader{err: boom}
		err := loader.NewParser(r).Parse(context.Background(), docs, device.NewModel(device.Identity{}))
		assert.ErrorIs(t, err, boom)
		var pe *loader.ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, loader.DocScene, pe.Document)
	})
}

func TestParseSceneIDs(t *testing.T) {
	m := parse(t, defaultDocs(), newFreqReader())

	launch, _ := m.Scene("interaction_launch")
	vsync, _ := m.Scene("vsync")
	idle, _ := m.Scene("idle")

	assert.Equal(t, "0x7f000102", launch.ID)
	assert.Equal(t, "0x00000001", vsync.ID)
	assert.Equal(t, "0", idle.ID, "unlisted scene keeps the seeded id")
}

func TestParseSceneIDUnknownNameLeavesScenesAlone(t *testing.T) {
	docs := defaultDocs()
	docs.SceneID = []byte("0x00000005 0x00000000 somebody_else\n")

	m := parse(t, docs, newFreqReader())
	for _, s := range m.Scenes() {
		assert.Equal(t, "0", s.ID, "scene %s", s.Name)
		assert.Equal(t, device.Success, s.Result)
	}
}

func TestParseDefaults(t *testing.T) {
	m := parse(t, defaultDocs(), newFreqReader())

	got := map[string]string{}
	var order []string
	for _, r := range m.Defaults() {
		got[r.Path] = r.Declared
		order = append(order, r.Path)
	}

	assert.Equal(t, map[string]string{
		"/dev/cluster0_freq_max": "1BC560",
		"/dev/cluster0_freq_min": "FF",
		"/sys/module/sched/boost": "FF",
		"/sys/devices/system/cpu/cpuhotplug/cluster1_core_max_limit": "FF",
	}, got)
	assert.Equal(t, "/dev/cluster0_freq_max", order[0])

	_, ok := m.Default("subsys/cpuhotplug")
	assert.False(t, ok, "file nodes under the subsys path are not defaults")
}

func TestParseDefaultWithoutDefValueIsFF(t *testing.T) {
	docs := defaultDocs()
	docs.Resource = []byte(`<r><file path="/sys/a" file="b"/></r>`)

	m := parse(t, docs, newFreqReader())
	r, ok := m.Default("/sys/a/b")
	require.True(t, ok)
	assert.Equal(t, "FF", r.Declared)
}

func TestParseMalformedDocument(t *testing.T) {
	tests := []struct {
		name string
		docs loader.Documents
		doc  string
	}{
		{"scene", loader.Documents{Scene: []byte("<scene_config><mode>"), Resource: []byte(resourceXML)}, loader.DocScene},
		{"resource", loader.Documents{Scene: []byte(sceneXML), Resource: []byte("not xml")}, loader.DocResource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loader.NewParser(newFreqReader()).Parse(context.Background(), tt.docs, device.NewModel(device.Identity{}))
			var pe *loader.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.doc, pe.Document)
		})
	}
}

func TestParseMissingAttribute(t *testing.T) {
	tests := []struct {
		name      string
		scene     string
		resource  string
		element   string
		attribute string
	}{
		{
			name:      "mode name",
			scene:     `<c><mode/></c>`,
			element:   "mode",
			attribute: "name",
		},
		{
			name:      "scene_set value",
			scene:     `<c><mode name="normal"><scene name="s"><scene_set path="/a" file="b"/></scene></mode></c>`,
			element:   "scene_set",
			attribute: "value",
		},
		{
			name:      "conf_set file",
			scene:     `<c><mode name="normal"><scene name="s"><scene_set path="subsys" file="x" value="y"/></scene></mode></c>`,
			resource:  `<r><subsys name="x"><conf name="y"><conf_set path="/a" value="1"/></conf></subsys></r>`,
			element:   "conf_set",
			attribute: "file",
		},
		{
			name:      "inode path",
			scene:     `<c/>`,
			resource:  `<r><subsys name="x"><inode file="f"/></subsys></r>`,
			element:   "inode",
			attribute: "path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resource := tt.resource
			if resource == "" {
				resource = `<r/>`
			}
			docs := loader.Documents{Scene: []byte(tt.scene), Resource: []byte(resource)}
			err := loader.NewParser(newFreqReader()).Parse(context.Background(), docs, device.NewModel(device.Identity{}))

			var me *loader.MissingAttributeError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.element, me.Element)
			assert.Equal(t, tt.attribute, me.Attribute)
		})
	}
}

func TestSubsysWithoutMatchAddsNothing(t *testing.T) {
	docs := defaultDocs()
	docs.Scene = []byte(`<c><mode name="normal"><scene name="s">
<scene_set path="subsys" file="cpuhotplug" value="nonexistent"/>
</scene></mode></c>`)

	m := parse(t, docs, nil)
	s, _ := m.Scene("s")
	assert.Equal(t, 0, s.ConfigQuantity)
	assert.Empty(t, s.Tunables)
}

func TestLoadAndRemoveFiles(t *testing.T) {
	dir := t.TempDir()
	names := loader.DefaultFileNames
	require.NoError(t, os.WriteFile(filepath.Join(dir, names.Scene), []byte(sceneXML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, names.Resource), []byte(resourceXML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, names.SceneID), []byte(sceneIDText), 0644))

	docs, err := loader.LoadFiles(dir, names)
	require.NoError(t, err)
	assert.Equal(t, sceneXML, string(docs.Scene))
	assert.Equal(t, sceneIDText, string(docs.SceneID))

	require.NoError(t, loader.RemoveFiles(dir, names))
	for _, n := range names.All() {
		_, err := os.Stat(filepath.Join(dir, n))
		assert.True(t, os.IsNotExist(err), "%s should be removed", n)
	}
	assert.NoError(t, loader.RemoveFiles(dir, names), "removing twice is not an error")
}

func TestLoadFilesMissing(t *testing.T) {
	_, err := loader.LoadFiles(t.TempDir(), loader.DefaultFileNames)
	var pe *loader.ParseError
	require.ErrorAs(t, err, &pe)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
