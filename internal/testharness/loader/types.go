// Package loader parses the vendor PowerHint configuration documents into a
// device.Model.
//
// Three documents are read: the scene definition XML (mode → scene →
// scene_set), the resource definition XML (subsys → conf → conf_set, plus
// file and inode nodes carrying default values) and the plain-text scene
// identifier list.
package loader

import (
	"context"
	"fmt"
)

// Document labels used in errors.
const (
	DocScene    = "scene definition"
	DocResource = "resource definition"
	DocSceneID  = "scene identifier"
)

// Mode is the only scene-definition mode that is verified.
const Mode = "normal"

// Documents holds the raw contents of the three configuration documents.
type Documents struct {
	Scene    []byte
	Resource []byte
	SceneID  []byte
}

// FileNames names the three documents on disk (and on the device).
type FileNames struct {
	Scene    string `yaml:"scene"`
	Resource string `yaml:"resource"`
	SceneID  string `yaml:"scene_id"`
}

// DefaultFileNames are the names used by the vendor image under /vendor/etc.
var DefaultFileNames = FileNames{
	Scene:    "power_scene_config.xml",
	Resource: "power_resource_file_info.xml",
	SceneID:  "power_scene_id_define.txt",
}

// All returns the three names in pull order.
func (n FileNames) All() []string {
	return []string{n.SceneID, n.Resource, n.Scene}
}

// DeviceReader reads the current contents of a file on the device under test.
type DeviceReader interface {
	ReadValue(ctx context.Context, path string) (string, error)
}

// ParseError reports a malformed configuration document.
type ParseError struct {
	// Document is one of the Doc* labels.
	Document string

	// Line is the line number where the error occurred (0 if unknown).
	Line int

	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *ParseError) Error() string {
	msg := e.Document + ": " + e.Message
	if e.Line > 0 {
		msg = fmt.Sprintf("%s:%d: %s", e.Document, e.Line, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// MissingAttributeError reports an element without a required attribute.
type MissingAttributeError struct {
	Document  string
	Element   string
	Attribute string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("%s: <%s> is missing required attribute %q", e.Document, e.Element, e.Attribute)
}
