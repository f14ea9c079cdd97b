package observability

const (
	AttrServiceName      = "service.name"
	AttrServiceVersion   = "service.version"
	AttrBusTopic         = "bus.topic"
	AttrEmbedProvider    = "embedding.provider"
	AttrVectorCollection = "vectorstore.collection"
	AttrErrorType        = "error.type"
	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size"
	AttrBackplaneEventID = "backplane.event_id"

	SpanHTTPRequest  = "http.request"
	SpanBusPublish   = "bus.publish"
	SpanEmbedCall    = "embedding.call"
	SpanVectorSearch = "vectorstore.search"
	SpanArchiveSweep = "autoarchive.sweep"

	DefaultServiceName = "backplane"
)
