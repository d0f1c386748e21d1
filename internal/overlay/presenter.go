package overlay

import (
	"github.com/odyssey-erp/invoice-overlay/internal/dom"
	"github.com/odyssey-erp/invoice-overlay/internal/state"
)

// Presenter draws the dashboard inside the mount element. A nil Presenter,
// or one whose Mount fails, leaves the engine on its static fallback.
type Presenter interface {
	Mount(root dom.Element, st state.UiState) error
	Render(root dom.Element, st state.UiState) error
}
