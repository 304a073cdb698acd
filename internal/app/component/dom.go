package component

// Element IDs.
const (
	IDGateModal   = "modal"
	IDGateContent = "content"
	IDNoteForm    = "note-form"
	IDNotesList   = "notes-list"
	IDLoginForm   = "login-form"
)

// Form field names, shared by the components and the handlers that parse
// them.
const (
	FieldCSRF     = "_csrf"
	FieldPassword = "password"
	FieldEmail    = "email"
	FieldTitle    = "title"
	FieldContent  = "content"
)

// Data attribute names with prefix (for use in CSS selectors and tests).
const (
	DataAttrNoteID = "data-note-id"
)

// CSS class names.
const (
	ClassSiteHeader = "site-header"
	ClassSiteTitle  = "site-title"
	ClassNotice     = "notice"
	ClassNote       = "note"
	ClassEmptyState = "empty-state"
)

// User-facing messages.
const (
	MessageIncorrectPassword = "Incorrect password!"
	MessageCheckEmail        = "Check your email for the login link!"
	MessageNoNotes           = "You have no notes yet."
	MessageInvalidLink       = "This login link is invalid or has expired."
)
