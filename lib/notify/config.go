package notify

type Config struct {
	// the command to run for each notification, the title and body are
	// appended as arguments
	Command []string `json:"command"`
	// email is disabled when the server is empty
	Email EmailConfig `json:"email"`
}

// FromConfig always includes a LogNotifier.
func FromConfig(config Config) (Multi, error) {
	notifiers := Multi{LogNotifier{}}
	if len(config.Command) > 0 {
		notifiers = append(notifiers, CommandNotifier{Command: config.Command})
	}
	if config.Email.Server != "" {
		email, err := NewEmailNotifier(config.Email)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, email)
	}
	return notifiers, nil
}
