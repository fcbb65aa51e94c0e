// ArtifactsData is a paginated response payload for the artifact gallery.
package dto

type ArtifactsData struct {
	Artifacts   []ArtifactInfo `json:"artifacts"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}
