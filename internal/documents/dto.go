package documents

import "time"

type documentResponse struct {
	DocumentID   string    `json:"documentId"`
	ResourceType string    `json:"resourceType"`
	FileName     string    `json:"fileName"`
	Folder       string    `json:"folder,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toResponse(doc Document) documentResponse {
	return documentResponse{
		DocumentID:   doc.ID,
		ResourceType: string(doc.ResourceType),
		FileName:     doc.FileName,
		Folder:       doc.Folder,
		Status:       string(doc.Status),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}
