package event

// Descriptor documents an event schema for consumers and tooling.
type Descriptor struct {
	ID          string  `json:"id" yaml:"id"`
	Version     int     `json:"version" yaml:"version"`
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description" yaml:"description"`
	Fields      []Field `json:"fields" yaml:"fields"`
}

// Field documents one field of a schema.
type Field struct {
	Name        string   `json:"name" yaml:"name"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Type        string   `json:"type" yaml:"type"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Required    bool     `json:"required" yaml:"required"`
}

const schemaDescription = `Record actions on user servers made via JupyterHub.

JupyterHub can perform various actions on user servers via direct
interaction from users, or via the API. This event is recorded whenever
either of those happen.

Limitations:

1. This does not record all server starts / stops, only those explicitly
   performed by JupyterHub. For example, a user's server can go down
   because the node it was running on dies. That will not cause an event
   to be recorded, since it was not initiated by JupyterHub. In practice
   this happens often, so this is not a complete record.

2. Events are only recorded when an action succeeds.
`

// Schema returns the server-action descriptor. Each call returns a copy.
func Schema() Descriptor {
	enum := make([]string, len(Actions))
	for i, a := range Actions {
		enum[i] = string(a)
	}
	return Descriptor{
		ID:          SchemaID,
		Version:     SchemaVersion,
		Title:       SchemaTitle,
		Description: schemaDescription,
		Fields: []Field{
			{
				Name:  "action",
				Title: "action",
				Description: `Action performed by JupyterHub.

This is a required field.

Possible Values:

- start: a user's server was successfully started
- stop: a user's server was successfully stopped
`,
				Type:     "string",
				Enum:     enum,
				Required: true,
			},
			{
				Name:  "username",
				Title: "username",
				Description: `Name of the user whose server this action was performed on.

This is the normalized name used by JupyterHub itself, which is derived
from the authentication provider used but might not be the same as used
in the authentication provider. Must not be empty.
`,
				Type:     "string",
				Required: true,
			},
			{
				Name:  "servername",
				Title: "servername",
				Description: `Name of the server this action was performed on.

JupyterHub supports each user having multiple servers with arbitrary
names, and this field specifies the name of the server.

The 'default' server is denoted by the empty string.
`,
				Type:     "string",
				Required: true,
			},
		},
	}
}
