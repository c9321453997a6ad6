package agent

import (
	"net"
	"strconv"

	"dev.c0redev.loco/internal/proto"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Echo replies with the request body unchanged.
func Echo(req *proto.Packet) (uint16, any, error) {
	return 0, bson.Raw(req.Body), nil
}

func connInfo(ports ...int32) bson.D {
	return bson.D{
		{Key: "bgKeepItv", Value: int32(900)},
		{Key: "bgReconnItv", Value: int32(5400)},
		{Key: "bgPingItv", Value: int32(600)},
		{Key: "fgPingItv", Value: int32(60)},
		{Key: "reqTimeout", Value: int32(10)},
		{Key: "encType", Value: int32(proto.AESEncryptType)},
		{Key: "connTimeout", Value: int32(10)},
		{Key: "recvHeaderTimeout", Value: int32(5)},
		{Key: "inSegTimeout", Value: int32(5)},
		{Key: "outSegTimeout", Value: int32(5)},
		{Key: "blockSendBufSize", Value: int32(16 * 1024)},
		{Key: "ports", Value: ports},
	}
}

// GetConf answers GETCONF pointing ticket lookups at ticketAddr (host:port).
func GetConf(ticketAddr string) HandlerFunc {
	host, portStr, _ := net.SplitHostPort(ticketAddr)
	port, _ := strconv.Atoi(portStr)
	return func(*proto.Packet) (uint16, any, error) {
		return 0, bson.D{
			{Key: "revision", Value: int32(1)},
			{Key: "3g", Value: connInfo(int32(port))},
			{Key: "wifi", Value: connInfo(int32(port))},
			{Key: "ticket", Value: bson.D{
				{Key: "ssl", Value: bson.A{}},
				{Key: "v2sl", Value: bson.A{}},
				{Key: "lsl", Value: bson.A{host}},
				{Key: "lsl6", Value: bson.A{}},
			}},
			{Key: "trailer", Value: bson.D{
				{Key: "tokenExpireTime", Value: int32(7200)},
				{Key: "resolution", Value: int32(720)},
				{Key: "resolutionHD", Value: int32(1280)},
				{Key: "compRatio", Value: int32(70)},
				{Key: "compRatioHD", Value: int32(85)},
				{Key: "downMode", Value: int32(0)},
				{Key: "concurrentDownLimit", Value: int32(5)},
				{Key: "concurrentUpLimit", Value: int32(5)},
				{Key: "maxRelaySize", Value: int32(300 * 1024 * 1024)},
				{Key: "downCheckSize", Value: int32(5 * 1024 * 1024)},
				{Key: "upMaxSize", Value: int32(500 * 1024 * 1024)},
				{Key: "videoUpMaxSize", Value: int32(1024 * 1024 * 1024)},
				{Key: "vCodec", Value: int32(1)},
				{Key: "vFps", Value: int32(30)},
				{Key: "aCodec", Value: int32(1)},
				{Key: "contentExpireTime", Value: int32(1209600)},
				{Key: "vResolution", Value: int32(640)},
				{Key: "vBitrate", Value: int32(1500000)},
				{Key: "aFrequency", Value: int32(48000)},
			}},
			{Key: "trailer.h", Value: bson.D{
				{Key: "vResolution", Value: int32(1280)},
				{Key: "vBitrate", Value: int32(8000000)},
				{Key: "aFrequency", Value: int32(48000)},
			}},
		}, nil
	}
}

// Checkin answers CHECKIN with chatAddr (host:port) and a cache lifetime in seconds.
func Checkin(chatAddr string, cacheExpire int32) HandlerFunc {
	host, portStr, _ := net.SplitHostPort(chatAddr)
	port, _ := strconv.Atoi(portStr)
	return func(*proto.Packet) (uint16, any, error) {
		return 0, bson.D{
			{Key: "cacheExpire", Value: cacheExpire},
			{Key: "cshost", Value: host},
			{Key: "cshost6", Value: ""},
			{Key: "csport", Value: int32(port)},
			{Key: "host", Value: host},
			{Key: "host6", Value: ""},
			{Key: "port", Value: int32(port)},
			{Key: "status", Value: int32(0)},
			{Key: "vsshost", Value: host},
			{Key: "vsshost6", Value: ""},
			{Key: "vssport", Value: int32(port)},
		}, nil
	}
}

// DefaultHandlers: GETCONF + CHECKIN, both pointing at addr.
func DefaultHandlers(addr string) map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"GETCONF": GetConf(addr),
		"CHECKIN": Checkin(addr, 3600),
	}
}
