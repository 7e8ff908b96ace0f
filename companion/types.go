package companion

// Selection is emitted by the companion app when the user selects an object.
// ObjectID is never empty once it reaches a registry handler.
type Selection struct {
	ObjectID string `json:"objectId"`
}

// ActionDescriptor describes an action a shell application offers for a
// selected object. Before submission ImageURL is resolved into ImageBase64;
// descriptors with neither carry the placeholder image.
type ActionDescriptor struct {
	ObjectID        string `json:"objectId,omitempty"`
	Name            string `json:"name"`
	ActionLabel     string `json:"actionLabel"`
	ImageBase64     string `json:"imageBase64,omitempty"`
	ImageURL        string `json:"imageUrl,omitempty"`
	CallbackContext string `json:"callbackContext"`

	// Set for catalog-declared actions only.
	ActionType string `json:"actionType,omitempty"`
	ServiceURL string `json:"serviceUrl,omitempty"`
}

// NeedsImage reports whether the descriptor references an image that has not
// been inlined yet.
func (d ActionDescriptor) NeedsImage() bool {
	return d.ImageURL != "" && d.ImageBase64 == ""
}

// ObjectData is one object shown on a drawing.
type ObjectData struct {
	ObjectID  string     `json:"objectId"`
	Color     string     `json:"color,omitempty"`
	Status    string     `json:"status,omitempty"`
	Info      []Property `json:"info,omitempty"`
	Documents []Document `json:"documents,omitempty"`
}

// Property is a name/value pair shown when the user taps an object.
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Document is an attachment linked to an object; Value is its download URL.
type Document struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// ShowRequest is the payload of ShowObject. A request carrying only a
// DrawingID opens that drawing.
type ShowRequest struct {
	Label     string       `json:"label,omitempty"`
	ObjectID  string       `json:"objectId,omitempty"`
	DrawingID string       `json:"drawingId,omitempty"`
	Objects   []ObjectData `json:"objects,omitempty"`
}

// DrawingDescriptor identifies a drawing known to the companion app.
type DrawingDescriptor struct {
	DrawingID   string `json:"drawingId"`
	DrawingName string `json:"drawingName"`
}

// Toast is a short message displayed by the companion app.
type Toast struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}
