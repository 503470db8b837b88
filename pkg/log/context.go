package log

import "context"

type sceneKey struct{}

// WithScene returns a context that tags device events with the scene under
// verification.
func WithScene(ctx context.Context, scene string) context.Context {
	return context.WithValue(ctx, sceneKey{}, scene)
}

// SceneFrom returns the scene set by WithScene, or "".
func SceneFrom(ctx context.Context) string {
	s, _ := ctx.Value(sceneKey{}).(string)
	return s
}
