package handlers

import (
	"net/http"

	"github.com/motorlot/apiserver/types"
)

// Taxonomy returns the enumerations used by listing forms and filters.
func Taxonomy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, types.DefaultTaxonomy())
}
