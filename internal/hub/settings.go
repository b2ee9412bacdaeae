package hub

// Settings identifies the event hub this process talks to. It is loaded once
// at startup and passed by value to every component that needs it.
type Settings struct {
	EventHubConnection string `env:"EventHubConnection" yaml:"EventHubConnection" validate:"required"`
	EventHubName       string `env:"EventHubName" yaml:"EventHubName" validate:"required"`
	ConsumerGroup      string `env:"ConsumerGroup" yaml:"ConsumerGroup" validate:"required"`
}
