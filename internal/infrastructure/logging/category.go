package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	RabbitMQ        Category = "RabbitMQ"
	Redis           Category = "Redis"
	WebSocket       Category = "WebSocket"
	Events          Category = "Events"
	Backplane       Category = "Backplane"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Broker
	Reconnect SubCategory = "Reconnect"
	Consume   SubCategory = "Consume"
	Retry     SubCategory = "Retry"
	ParkedMsg SubCategory = "Parked"

	// Realtime
	Broadcast  SubCategory = "Broadcast"
	Membership SubCategory = "Membership"
	Connection SubCategory = "Connection"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	HostIp       ExtraKey = "HostIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"

	CorrelationID ExtraKey = "CorrelationId"
	EventType     ExtraKey = "EventType"
	EventID       ExtraKey = "EventId"
	QueueName     ExtraKey = "Queue"
	RoomKey       ExtraKey = "Room"
	UserID        ExtraKey = "UserId"
	RetryCount    ExtraKey = "RetryCount"
)
