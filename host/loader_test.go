package host_test

import (
	"context"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/reglet-dev/h7-kernel/domain/errors"
	"github.com/reglet-dev/h7-kernel/domain/guard"
	"github.com/reglet-dev/h7-kernel/domain/image"
	"github.com/reglet-dev/h7-kernel/host"
	"github.com/reglet-dev/h7-kernel/internal/fifo"
)

const (
	appStart = 0x2400_0000
	appSize  = 0x8_0000
)

type memFiles map[string][]byte

func (m memFiles) ReadFile(path string, dst []byte) (int, error) {
	data, ok := m[path]
	if !ok {
		return 0, fs.ErrNotExist
	}
	if len(data) > len(dst) {
		return 0, image.ErrImageTooLarge
	}
	return copy(dst, data), nil
}

type LoaderTestSuite struct {
	suite.Suite
	buf    *image.Buffer
	loader *host.Loader
	thumb  []byte
}

func (s *LoaderTestSuite) SetupTest() {
	s.buf = image.NewBuffer(appStart, appSize)
	s.thumb = image.Build(0x2400_0005, []byte{0, 0, 0, 0})
	s.loader = host.NewLoader(s.buf,
		host.WithFiles(memFiles{"sdcard:/hello.h7": s.thumb}),
		host.WithPollInterval(time.Microsecond),
	)
}

func (s *LoaderTestSuite) TestRegion() {
	s.Equal(guard.Region{Start: appStart, Size: appSize}, s.loader.Region())
}

func (s *LoaderTestSuite) TestLoadFile() {
	n, err := s.loader.LoadFile("sdcard:/hello.h7")
	s.Require().NoError(err)
	s.Equal(len(s.thumb), n)
	s.Equal(s.thumb, s.buf.Bytes())

	rep, err := s.loader.Inspect()
	s.Require().NoError(err)
	s.Equal(image.Entry(0x2400_0005), rep.Entry)
	s.Equal(guard.ModeThumb, rep.EntryPoint.Mode())
	s.True(rep.CRCPassed())
	s.Equal(fmt.Sprintf("Address: 0x24000005 (valid thumb), CRC: 0x%08x (passed), Size: 0xc", rep.CRC), rep.String())
}

func (s *LoaderTestSuite) TestLoadFileMissing() {
	_, err := s.loader.LoadFile("sdcard:/nope.h7")
	s.Require().Error(err)
	s.ErrorIs(err, fs.ErrNotExist)
	s.Contains(err.Error(), "pload sdcard:/nope.h7")
	s.Zero(s.buf.Len())
}

func (s *LoaderTestSuite) TestLoadFileWithoutStorage() {
	l := host.NewLoader(s.buf)
	_, err := l.LoadFile("sdcard:/hello.h7")
	s.ErrorIs(err, host.ErrNoFilesystem)
	s.Equal(errors.KindStorage, errors.KindOf(err))
}

func (s *LoaderTestSuite) TestLoadFileZeroFillsPreviousImage() {
	s.Require().NoError(s.buf.Load(make([]byte, 64)))
	copy(s.buf.Region()[20:], []byte{0xff, 0xff})

	_, err := s.loader.LoadFile("sdcard:/hello.h7")
	s.Require().NoError(err)
	s.Equal(byte(0), s.buf.Region()[20])
}

func (s *LoaderTestSuite) TestLoadHex() {
	n, err := s.loader.LoadHex(fmt.Sprintf("%x", s.thumb))
	s.Require().NoError(err)
	s.Equal(len(s.thumb), n)
	s.Equal(s.thumb, s.buf.Bytes())
}

func (s *LoaderTestSuite) TestLoadHexUppercase() {
	n, err := s.loader.LoadHex("DEADbeef")
	s.Require().NoError(err)
	s.Equal(4, n)
	s.Equal([]byte{0xde, 0xad, 0xbe, 0xef}, s.buf.Bytes())
}

func (s *LoaderTestSuite) TestLoadHexErrors() {
	tests := []struct {
		in   string
		want string
	}{
		{"abc", "Invalid byte: '0xc None' (half a byte missing)"},
		{"a1zz", "Invalid byte: '0xz 0xz'"},
		{"g0", "Invalid byte: '0xg 0x0'"},
	}
	for _, tt := range tests {
		s.Run(tt.in, func() {
			_, err := s.loader.LoadHex(tt.in)
			s.Require().Error(err)
			s.Equal(tt.want, err.Error())
			s.ErrorIs(err, host.ErrMalformedHex)
			s.Equal(errors.KindFormat, errors.KindOf(err))
			s.Zero(s.buf.Len())
		})
	}
}

func (s *LoaderTestSuite) TestReceiveHex() {
	q := fifo.New(nil, 64)
	for _, c := range []byte("0a0B\n") {
		q.Push(c)
	}
	n, err := s.loader.ReceiveHex(context.Background(), q)
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal([]byte{0x0a, 0x0b}, s.buf.Bytes())
}

func (s *LoaderTestSuite) TestReceiveHexWaitsForData() {
	q := fifo.New(nil, 64)
	go func() {
		for _, c := range []byte("ff\n") {
			time.Sleep(time.Millisecond)
			q.Push(c)
		}
	}()
	n, err := s.loader.ReceiveHex(context.Background(), q)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *LoaderTestSuite) TestReceiveHexHalfByte() {
	q := fifo.New(nil, 64)
	for _, c := range []byte("abc\n") {
		q.Push(c)
	}
	_, err := s.loader.ReceiveHex(context.Background(), q)
	s.Require().Error(err)
	s.Equal("Invalid byte: '0xc None' (half a byte missing)", err.Error())
}

func (s *LoaderTestSuite) TestReceiveHexBadPair() {
	q := fifo.New(nil, 64)
	for _, c := range []byte("0x12\n") {
		q.Push(c)
	}
	_, err := s.loader.ReceiveHex(context.Background(), q)
	s.Require().Error(err)
	s.Equal("Invalid byte: '0x0 0xx'", err.Error())
}

func (s *LoaderTestSuite) TestReceiveHexCancelled() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := s.loader.ReceiveHex(ctx, fifo.New(nil, 8))
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *LoaderTestSuite) TestReceiveHexOverflow() {
	small := host.NewLoader(image.NewBuffer(appStart, 2))
	q := fifo.New(nil, 64)
	for _, c := range []byte("010203\n") {
		q.Push(c)
	}
	_, err := small.ReceiveHex(context.Background(), q)
	s.ErrorIs(err, image.ErrImageTooLarge)
}

func (s *LoaderTestSuite) TestInspectTooShort() {
	_, err := s.loader.LoadHex("01020304")
	s.Require().NoError(err)
	_, err = s.loader.Inspect()
	s.ErrorIs(err, image.ErrImageTooShort)
}

func (s *LoaderTestSuite) TestInspectCorruptTrailer() {
	img := append([]byte(nil), s.thumb...)
	img[len(img)-1]++
	s.Require().NoError(s.buf.Load(img))

	rep, err := s.loader.Inspect()
	s.Require().NoError(err)
	s.False(rep.CRCPassed())
	s.ErrorIs(rep.CRCErr, image.ErrCRCMismatch)
	s.Equal(image.Checksum(s.thumb[:len(s.thumb)-4]), rep.CRC)
	s.Contains(rep.String(), "(failed)")
}

func (s *LoaderTestSuite) TestInspectAddressChecks() {
	tests := []struct {
		entry image.Entry
		want  string
	}{
		{0x2400_0005, "valid thumb"},
		{0x2400_0008, "valid arm"},
		{0x2400_0006, "invalid"},
		{0x2400_0000, "out of range"},
		{0x2408_0000, "out of range"},
	}
	for _, tt := range tests {
		s.Run(tt.want, func() {
			s.Require().NoError(s.buf.Load(image.Build(tt.entry, []byte{1, 2, 3, 4})))
			rep, err := s.loader.Inspect()
			s.Require().NoError(err)
			s.Contains(rep.String(), fmt.Sprintf("Address: %#x (%s)", uint32(tt.entry), tt.want))
		})
	}
}

func TestLoaderTestSuite(t *testing.T) {
	suite.Run(t, new(LoaderTestSuite))
}
