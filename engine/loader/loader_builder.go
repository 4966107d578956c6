package loader

import "github.com/Carmen-Shannon/disintegrate/engine/model"

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithMeshIndex selects which mesh of the document is imported. Defaults to 0.
//
// Parameters:
//   - index: the glTF mesh index
//
// Returns:
//   - LoaderBuilderOption: a function that applies the mesh index option to a loader
func WithMeshIndex(index int) LoaderBuilderOption {
	return func(l *loader) {
		l.meshIndex = index
	}
}

// WithMesh pre-populates the mesh cache.
//
// Parameters:
//   - key: the cache key
//   - mesh: the mesh to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the mesh option to a loader
func WithMesh(key string, mesh *model.Mesh) LoaderBuilderOption {
	return func(l *loader) {
		l.meshCache[key] = mesh
	}
}
