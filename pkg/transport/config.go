package transport

// Delivery names a real transport.
type Delivery string

const (
	DeliveryPostmark Delivery = "postmark"
	DeliveryDev      Delivery = "dev"
	DeliveryS3       Delivery = "s3"
)

// Config selects and configures the real transport.
type Config struct {
	Delivery Delivery `env:"MAILQUEUE_DELIVERY" envDefault:"dev"`

	PostmarkServerToken   string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken  string `env:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkMessageStream string `env:"POSTMARK_MESSAGE_STREAM" envDefault:"outbound"`
	PostmarkBaseURL       string `env:"POSTMARK_BASE_URL"`
	// SenderEmail overrides the From header when set.
	SenderEmail string `env:"SENDER_EMAIL"`

	DevDir string `env:"MAILQUEUE_DEV_DIR" envDefault:"./var/mail"`

	S3Bucket         string `env:"MAILQUEUE_S3_BUCKET"`
	S3Region         string `env:"MAILQUEUE_S3_REGION" envDefault:"us-east-1"`
	S3AccessKeyID    string `env:"MAILQUEUE_S3_ACCESS_KEY_ID"`
	S3SecretKey      string `env:"MAILQUEUE_S3_SECRET_KEY"`
	S3Endpoint       string `env:"MAILQUEUE_S3_ENDPOINT"`
	S3Prefix         string `env:"MAILQUEUE_S3_PREFIX" envDefault:"outgoing/"`
	S3ForcePathStyle bool   `env:"MAILQUEUE_S3_FORCE_PATH_STYLE"`
}
