package presign

import (
	"context"
	"errors"
	"time"

	v1 "github.com/jordanharrington/visualgate/api/v1"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"
)

type mockPresigner struct {
	mock.Mock
}

func (m *mockPresigner) PresignPut(ctx context.Context, bucket, key string, opts PutOptions) (*v1.PresignedUrl, error) {
	args := m.Called(ctx, bucket, key, opts)
	u, _ := args.Get(0).(*v1.PresignedUrl)
	return u, args.Error(1)
}

var _ = Describe("Archive", func() {
	var m *mockPresigner

	BeforeEach(func() {
		m = &mockPresigner{}
	})

	AfterEach(func() {
		m.AssertExpectations(GinkgoT())
	})

	It("keys uploads by prefix, task and filename with SSE-S3", func() {
		a := NewArchive(m, "media", "generated/", 2*time.Minute, "")
		m.
			On("PresignPut", mock.Anything, "media", "generated/t-1/clip.mp4", mock.MatchedBy(func(o PutOptions) bool {
				return o.ContentType == "video/mp4" &&
					o.TTL == 2*time.Minute &&
					o.Encryption.Mode == EncryptionS3 &&
					o.Metadata["task-id"] == "t-1"
			})).
			Return(&v1.PresignedUrl{Bucket: "media", Key: "generated/t-1/clip.mp4", URL: "https://signed"}, nil).
			Once()

		u, err := a.Presign(context.Background(), "t-1", "clip.mp4", "video/mp4")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.URL).To(Equal("https://signed"))
	})

	It("switches to SSE-KMS when a key id is configured", func() {
		a := NewArchive(m, "media", "", time.Minute, "alias/media")
		m.
			On("PresignPut", mock.Anything, "media", "t-2/a.png", mock.MatchedBy(func(o PutOptions) bool {
				return o.Encryption.Mode == EncryptionKMS && o.Encryption.KMSKeyID == "alias/media"
			})).
			Return(&v1.PresignedUrl{URL: "https://signed/kms"}, nil).
			Once()

		_, err := a.Presign(context.Background(), "t-2", "a.png", "image/png")
		Expect(err).NotTo(HaveOccurred())
	})

	It("wraps presign failures with the target", func() {
		a := NewArchive(m, "media", "p/", time.Minute, "")
		m.
			On("PresignPut", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("no credentials")).
			Once()

		_, err := a.Presign(context.Background(), "t-3", "x.png", "image/png")
		Expect(err).To(MatchError(ContainSubstring("media/p/t-3/x.png")))
		Expect(err).To(MatchError(ContainSubstring("no credentials")))
	})
})
