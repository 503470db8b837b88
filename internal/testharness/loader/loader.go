package loader

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/device"
)

const (
	subsysPath = "subsys"

	boostDFSFile   = "scene_boost_dfs"
	ddrCurFreqFile = "ddrinfo_cur_freq"
	ddrFreqTable   = "ddrinfo_freq_table"
	maxFreqValue   = "max"

	defValueAttr = "def_value"
)

// sceneIDLine matches "0x00000001 0x00000000 vsync".
var sceneIDLine = regexp.MustCompile(`(0x[[:xdigit:]]{8})\s+(0x[[:xdigit:]]{8})\s+(.*)`)

// Parser turns the configuration documents into a device.Model.
type Parser struct {
	reader DeviceReader
}

// NewParser creates a parser. The reader is used to resolve the live DDR
// frequency table for scene_boost_dfs tunables; it may be nil if the
// documents contain none.
func NewParser(reader DeviceReader) *Parser {
	return &Parser{reader: reader}
}

// Parse fills model with the scenes and resource defaults described by docs.
// Malformed documents yield a *ParseError, absent attributes a
// *MissingAttributeError.
func (p *Parser) Parse(ctx context.Context, docs Documents, model *device.Model) error {
	sceneRoot, err := parseTree(DocScene, docs.Scene)
	if err != nil {
		return err
	}
	resourceRoot, err := parseTree(DocResource, docs.Resource)
	if err != nil {
		return err
	}

	if err := p.parseScenes(ctx, sceneRoot, resourceRoot, model); err != nil {
		return err
	}
	if err := parseSceneIDs(docs.SceneID, model); err != nil {
		return err
	}
	return parseDefaults(resourceRoot, model)
}

func (p *Parser) parseScenes(ctx context.Context, root, resources *element, model *device.Model) error {
	for i := range root.Children {
		mode := &root.Children[i]
		if mode.tag() != "mode" {
			continue
		}
		name, err := mode.require(DocScene, "name")
		if err != nil {
			return err
		}
		if name != Mode {
			continue
		}

		for j := range mode.Children {
			scene, err := p.parseScene(ctx, &mode.Children[j], resources)
			if err != nil {
				return err
			}
			model.AddScene(scene)
			log.Debug().
				Str("scene", scene.Name).
				Int("config_quantity", scene.ConfigQuantity).
				Msg("Scene parsed")
		}
	}
	return nil
}

func (p *Parser) parseScene(ctx context.Context, el, resources *element) (*device.Scene, error) {
	name, err := el.require(DocScene, "name")
	if err != nil {
		return nil, err
	}
	scene := device.NewScene(name)

	quantity := 0
	for i := range el.Children {
		set := &el.Children[i]
		path, err := set.require(DocScene, "path")
		if err != nil {
			return nil, err
		}
		file, err := set.require(DocScene, "file")
		if err != nil {
			return nil, err
		}
		value, err := set.require(DocScene, "value")
		if err != nil {
			return nil, err
		}

		if path == subsysPath {
			n, err := expandSubsys(resources, scene, file, value)
			if err != nil {
				return nil, err
			}
			quantity += n
			continue
		}

		if file == boostDFSFile {
			file = ddrCurFreqFile
			if value == maxFreqValue {
				if value, err = p.maxDDRFreq(ctx, path); err != nil {
					return nil, err
				}
			}
		}
		scene.AddTunable(path+"/"+file, value)
		quantity++
	}

	// A scene without tunables keeps its seeded quantity of 0.
	if quantity != 0 {
		scene.ConfigQuantity = quantity
	}
	return scene, nil
}

// expandSubsys appends every conf_set of the named subsys/conf block in the
// resource document and returns how many were added.
func expandSubsys(resources *element, scene *device.Scene, subsysName, confName string) (int, error) {
	count := 0
	for _, subsys := range resources.iter("subsys") {
		name, err := subsys.require(DocResource, "name")
		if err != nil {
			return 0, err
		}
		if name != subsysName {
			continue
		}
		for _, conf := range subsys.iter("conf") {
			name, err := conf.require(DocResource, "name")
			if err != nil {
				return 0, err
			}
			if name != confName {
				continue
			}
			for i := range conf.Children {
				set := &conf.Children[i]
				path, err := set.require(DocResource, "path")
				if err != nil {
					return 0, err
				}
				file, err := set.require(DocResource, "file")
				if err != nil {
					return 0, err
				}
				value, err := set.require(DocResource, "value")
				if err != nil {
					return 0, err
				}
				scene.AddTunable(path+"/"+file, value)
				count++
			}
		}
	}
	return count, nil
}

// maxDDRFreq returns the highest entry of the live DDR frequency table.
func (p *Parser) maxDDRFreq(ctx context.Context, dir string) (string, error) {
	if p.reader == nil {
		return "", &ParseError{Document: DocScene, Message: "scene_boost_dfs needs a device to read " + ddrFreqTable}
	}
	table, err := p.reader.ReadValue(ctx, dir+"/"+ddrFreqTable)
	if err != nil {
		return "", &ParseError{Document: DocScene, Message: "read DDR frequency table at " + dir, Cause: err}
	}
	table = strings.NewReplacer("\n", "", "\r", "").Replace(table)
	freqs := strings.Fields(table)
	if len(freqs) == 0 {
		return "", &ParseError{Document: DocScene, Message: "empty DDR frequency table at " + dir}
	}
	return freqs[len(freqs)-1], nil
}

// parseSceneIDs assigns ids to known scenes. Names the model does not know
// are skipped without error.
func parseSceneIDs(data []byte, model *device.Model) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		m := sceneIDLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[3])
		if scene, ok := model.Scene(name); ok {
			scene.ID = m[1]
		}
	}
	if err := sc.Err(); err != nil {
		return &ParseError{Document: DocSceneID, Message: "failed to read lines", Cause: err}
	}
	return nil
}

// parseDefaults fills the resource defaults from file and inode nodes.
func parseDefaults(root *element, model *device.Model) error {
	for _, node := range root.iter("file") {
		path, err := node.require(DocResource, "path")
		if err != nil {
			return err
		}
		if path == subsysPath {
			continue
		}
		file, err := node.require(DocResource, "file")
		if err != nil {
			return err
		}

		def := device.Unconstrained
		if flag, _ := node.attr("no_has_def"); flag != "1" {
			if def, err = declaredDefault(node); err != nil {
				return err
			}
		}
		model.SetDefault(path+"/"+file, def)
	}

	for _, subsys := range root.iter("subsys") {
		for _, inode := range subsys.iter("inode") {
			path, err := inode.require(DocResource, "path")
			if err != nil {
				return err
			}
			file, err := inode.require(DocResource, "file")
			if err != nil {
				return err
			}
			model.SetDefault(path+"/"+file, device.Unconstrained)
		}
	}
	return nil
}

// declaredDefault returns the value of the <attr name="def_value"> child, or
// Unconstrained if there is none.
func declaredDefault(node *element) (string, error) {
	for i := range node.Children {
		a := &node.Children[i]
		if a.tag() != "attr" {
			continue
		}
		name, err := a.require(DocResource, "name")
		if err != nil {
			return "", err
		}
		if name == defValueAttr {
			return a.require(DocResource, "value")
		}
	}
	return device.Unconstrained, nil
}

// LoadFiles reads the three documents from dir.
func LoadFiles(dir string, names FileNames) (Documents, error) {
	var docs Documents
	for _, f := range []struct {
		doc  string
		name string
		dst  *[]byte
	}{
		{DocScene, names.Scene, &docs.Scene},
		{DocResource, names.Resource, &docs.Resource},
		{DocSceneID, names.SceneID, &docs.SceneID},
	} {
		data, err := os.ReadFile(filepath.Join(dir, f.name))
		if err != nil {
			return Documents{}, &ParseError{Document: f.doc, Message: "failed to read " + f.name, Cause: err}
		}
		*f.dst = data
	}
	return docs, nil
}

// RemoveFiles deletes the local copies of the three documents.
func RemoveFiles(dir string, names FileNames) error {
	var firstErr error
	for _, name := range names.All() {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
