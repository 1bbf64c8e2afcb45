package entity

// Estados de registro. Nada se borra físicamente: se desactiva.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)
