package client

import "context"

// Method names.
const (
	MethodGetConf = "GETCONF"
	MethodCheckin = "CHECKIN"
)

// BookingRequest: GETCONF body; empty strings are accepted by the server.
type BookingRequest struct {
	Model  string `bson:"model"`
	OS     string `bson:"os"`
	MCCMNC string `bson:"MCCMNC"`
}

// ConnectionInfo: per-network timing hints from GETCONF.
type ConnectionInfo struct {
	BackgroundKeepInterval      int32   `bson:"bgKeepItv"`
	BackgroundReconnectInterval int32   `bson:"bgReconnItv"`
	BackgroundPingInterval      int32   `bson:"bgPingItv"`
	PingInterval                int32   `bson:"fgPingItv"`
	RequestTimeout              int32   `bson:"reqTimeout"`
	EncryptType                 int32   `bson:"encType"`
	ConnectionTimeout           int32   `bson:"connTimeout"`
	ReceiveHeaderTimeout        int32   `bson:"recvHeaderTimeout"`
	InSegmentTimeout            int32   `bson:"inSegTimeout"`
	OutSegmentTimeout           int32   `bson:"outSegTimeout"`
	BlockSendBufferSize         int32   `bson:"blockSendBufSize"`
	Ports                       []int32 `bson:"ports"`
}

// HostInfo: ticket server host lists.
type HostInfo struct {
	SSL  []string `bson:"ssl"`
	V2SL []string `bson:"v2sl"`
	LSL  []string `bson:"lsl"`
	LSL6 []string `bson:"lsl6"`
}

// Trailer: media limits.
type Trailer struct {
	TokenExpireTime     int32 `bson:"tokenExpireTime"`
	Resolution          int32 `bson:"resolution"`
	ResolutionHD        int32 `bson:"resolutionHD"`
	CompressRatio       int8  `bson:"compRatio"`
	CompressRatioHD     int8  `bson:"compRatioHD"`
	DownMode            int8  `bson:"downMode"`
	ConcurrentDownLimit int16 `bson:"concurrentDownLimit"`
	ConcurrentUpLimit   int16 `bson:"concurrentUpLimit"`
	MaxRelaySize        int32 `bson:"maxRelaySize"`
	DownCheckSize       int32 `bson:"downCheckSize"`
	UpMaxSize           int32 `bson:"upMaxSize"`
	VideoUpMaxSize      int32 `bson:"videoUpMaxSize"`
	VideoCodec          int8  `bson:"vCodec"`
	VideoFPS            int16 `bson:"vFps"`
	AudioCodec          int8  `bson:"aCodec"`
	ContentExpireTime   int32 `bson:"contentExpireTime"`
	VideoResolution     int32 `bson:"vResolution"`
	VideoBitrate        int32 `bson:"vBitrate"`
	AudioFrequency      int32 `bson:"aFrequency"`
}

// TrailerHigh: HD media limits.
type TrailerHigh struct {
	VideoResolution int32 `bson:"vResolution"`
	VideoBitrate    int32 `bson:"vBitrate"`
	AudioFrequency  int32 `bson:"aFrequency"`
}

// GetConfResponse: GETCONF reply.
type GetConfResponse struct {
	Revision    int32          `bson:"revision"`
	Cellular    ConnectionInfo `bson:"3g"`
	WiFi        ConnectionInfo `bson:"wifi"`
	Ticket      HostInfo       `bson:"ticket"`
	Trailer     Trailer        `bson:"trailer"`
	TrailerHigh TrailerHigh    `bson:"trailer.h"`
}

// CheckinRequest: CHECKIN body.
type CheckinRequest struct {
	UserID     int64  `bson:"userId"`
	OS         string `bson:"os"`
	NetType    uint16 `bson:"ntype"`
	AppVersion string `bson:"appVer"`
	Lang       string `bson:"lang"`
	MCCMNC     string `bson:"MCCMNC"`
}

// CheckinResponse: CHECKIN reply; CacheExpire is seconds.
type CheckinResponse struct {
	CacheExpire uint32 `bson:"cacheExpire"`
	CSHost      string `bson:"cshost"`
	CSHost6     string `bson:"cshost6"`
	CSPort      uint32 `bson:"csport"`
	Host        string `bson:"host"`
	Host6       string `bson:"host6"`
	Port        uint32 `bson:"port"`
	Status      uint32 `bson:"status"`
	VSSHost     string `bson:"vsshost"`
	VSSHost6    string `bson:"vsshost6"`
	VSSPort     uint32 `bson:"vssport"`
}

// GetConf sends GETCONF (booking service).
func GetConf(ctx context.Context, c *Conn, req *BookingRequest) (*Response[GetConfResponse], error) {
	return Call[GetConfResponse](ctx, c, MethodGetConf, req)
}

// Checkin sends CHECKIN (ticket service).
func Checkin(ctx context.Context, c *Conn, req *CheckinRequest) (*Response[CheckinResponse], error) {
	return Call[CheckinResponse](ctx, c, MethodCheckin, req)
}
