package agent

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"net"
	"testing"

	"dev.c0redev.loco/internal/crypto"
	"dev.c0redev.loco/internal/proto"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func startPeer(t *testing.T, priv *rsa.PrivateKey, handlers map[string]HandlerFunc) (net.Conn, chan error) {
	t.Helper()
	cli, srv := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- NewPeer(srv, priv, handlers).Run() }()
	t.Cleanup(func() { cli.Close() })
	return cli, done
}

func TestPeerPlainUnknownMethod(t *testing.T) {
	cli, done := startPeer(t, nil, map[string]HandlerFunc{"ECHO": Echo})

	req, err := proto.NewPacket(42, "NOPE", bson.D{})
	require.NoError(t, err)
	require.NoError(t, proto.WritePacket(cli, req))

	res, err := proto.ReadPacket(cli)
	require.NoError(t, err)
	require.Equal(t, uint32(42), res.Header.PacketID)
	require.Equal(t, "NOPE", res.Header.Method)
	require.Equal(t, StatusUnknownMethod, res.Header.StatusCode)

	require.NoError(t, cli.Close())
	require.NoError(t, <-done)
}

func TestPeerSecureEcho(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cli, done := startPeer(t, priv, map[string]HandlerFunc{"ECHO": Echo})

	hs, err := crypto.NewHandshake(&priv.PublicKey)
	require.NoError(t, err)
	_, err = cli.Write(hs.Bytes())
	require.NoError(t, err)

	sess, err := crypto.NewSession(hs.Key)
	require.NoError(t, err)
	req, err := proto.NewPacket(7, "ECHO", bson.D{{Key: "msg", Value: "hello"}})
	require.NoError(t, err)
	pt, err := req.Bytes()
	require.NoError(t, err)
	var iv [proto.IVSize]byte
	copy(iv[:], "0123456789abcdef")
	env, err := sess.SealWithIV(iv, pt)
	require.NoError(t, err)
	_, err = cli.Write(env)
	require.NoError(t, err)

	reply, err := sess.ReadEnvelope(bufio.NewReader(cli))
	require.NoError(t, err)
	res, err := proto.ParsePacket(reply)
	require.NoError(t, err)
	require.Equal(t, int(res.Header.BodyLength), len(reply)-proto.HeaderSize)
	require.Equal(t, uint32(7), res.Header.PacketID)
	require.Equal(t, req.Body, res.Body)

	require.NoError(t, cli.Close())
	require.NoError(t, <-done)
}

func TestPeerRejectsBadHandshake(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cli, done := startPeer(t, priv, nil)

	_, err = cli.Write(proto.EncodeHandshakeHeader(&proto.HandshakeHeader{DataLength: 256, RSAEncryptType: 1, AESEncryptType: 2}))
	require.NoError(t, err)
	require.ErrorIs(t, <-done, crypto.ErrUnsupportedEncryption)
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &Server{Handlers: DefaultHandlers("127.0.0.1:5223")}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	req, _ := proto.NewPacket(1, "CHECKIN", bson.D{})
	require.NoError(t, proto.WritePacket(conn, req))
	res, err := proto.ReadPacket(conn)
	require.NoError(t, err)
	require.Equal(t, uint16(0), res.Header.StatusCode)

	var body struct {
		Host        string `bson:"host"`
		Port        int32  `bson:"port"`
		CacheExpire int32  `bson:"cacheExpire"`
	}
	require.NoError(t, proto.UnmarshalBody(res.Body, &body))
	require.Equal(t, "127.0.0.1", body.Host)
	require.Equal(t, int32(5223), body.Port)
	require.Equal(t, int32(3600), body.CacheExpire)

	conn.Close()
	ln.Close()
	require.NoError(t, <-served)
}
