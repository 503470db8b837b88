package device

// Model is everything known about one device for the length of one run.
// Scenes and resources keep the order in which the configuration documents
// declared them.
type Model struct {
	Identity Identity

	scenes     []*Scene
	sceneIndex map[string]*Scene

	resources     []*ResourceDefault
	resourceIndex map[string]*ResourceDefault
}

// NewModel creates an empty model for the given device.
func NewModel(id Identity) *Model {
	return &Model{
		Identity:      id,
		sceneIndex:    make(map[string]*Scene),
		resourceIndex: make(map[string]*ResourceDefault),
	}
}

// AddScene registers a scene. A second scene with the same name replaces
// the tunables of the first but keeps its position.
func (m *Model) AddScene(s *Scene) {
	if existing, ok := m.sceneIndex[s.Name]; ok {
		*existing = *s
		return
	}
	m.scenes = append(m.scenes, s)
	m.sceneIndex[s.Name] = s
}

// Scene looks up a scene by name.
func (m *Model) Scene(name string) (*Scene, bool) {
	s, ok := m.sceneIndex[name]
	return s, ok
}

// Scenes returns the scenes in declaration order.
func (m *Model) Scenes() []*Scene {
	return m.scenes
}

// SetDefault records the declared default of a tunable. The first
// declaration of a path wins.
func (m *Model) SetDefault(path, value string) {
	if _, ok := m.resourceIndex[path]; ok {
		return
	}
	r := &ResourceDefault{Path: path, Declared: value}
	m.resources = append(m.resources, r)
	m.resourceIndex[path] = r
}

// Default looks up the default of a tunable by path.
func (m *Model) Default(path string) (*ResourceDefault, bool) {
	r, ok := m.resourceIndex[path]
	return r, ok
}

// Defaults returns all resource defaults in declaration order.
func (m *Model) Defaults() []*ResourceDefault {
	return m.resources
}
