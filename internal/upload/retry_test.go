package upload_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/testsmith/testsmith/internal/upload"
	mockuploader "github.com/testsmith/testsmith/internal/upload/mock"
)

func fastBackoff() retry.Backoff {
	b := retry.NewConstant(time.Millisecond * 10)
	b = retry.WithMaxRetries(3, b)
	return b
}

func TestStoreIdentifier(t *testing.T) {
	t.Run("NoError", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().StoreIdentifier(gomock.Any()).Return("bucket", nil).Times(1)

		actual, err := upload.NewRetryUploader(u).StoreIdentifier(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "bucket", actual)
	})

	t.Run("Error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().StoreIdentifier(gomock.Any()).Return("", errors.New("expected error")).Times(4)

		_, err := upload.NewRetryUploaderBackoff(u, fastBackoff).StoreIdentifier(context.Background())
		require.Error(t, err)
	})
}

func TestUpload(t *testing.T) {
	t.Run("ErrorAfter1Try", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		reader := strings.NewReader("hello there")

		counter := 0
		u.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Eq(int64(reader.Len())), gomock.Eq("key"), gomock.Eq("text/plain")).
			DoAndReturn(func(_ context.Context, r io.ReadSeeker, _ int64, _, _ string) error {
				counter++
				// consume the reader so the retry has to rewind it
				body, err := io.ReadAll(r)
				require.NoError(t, err)
				assert.Equal(t, "hello there", string(body))

				if counter == 2 {
					return nil
				}
				return errors.New("expected error")
			}).
			Times(2)

		err := upload.NewRetryUploaderBackoff(u, fastBackoff).
			Upload(context.Background(), reader, int64(reader.Len()), "key", "text/plain")
		require.NoError(t, err)
	})

	t.Run("Error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		reader := strings.NewReader("hello there")

		u.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(errors.New("expected error")).
			Times(4)

		err := upload.NewRetryUploaderBackoff(u, fastBackoff).
			Upload(context.Background(), reader, int64(reader.Len()), "key", "text/plain")
		require.Error(t, err)
	})
}

func TestExists(t *testing.T) {
	t.Run("NoErrorNotExists", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().Exists(gomock.Any(), gomock.Eq("key")).Return(false, nil).Times(1)

		actual, err := upload.NewRetryUploader(u).Exists(context.Background(), "key")
		require.NoError(t, err)
		assert.False(t, actual)
	})

	t.Run("ErrorAfter1Try", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		gomock.InOrder(
			u.EXPECT().Exists(gomock.Any(), gomock.Eq("key")).Return(false, errors.New("expected error")),
			u.EXPECT().Exists(gomock.Any(), gomock.Eq("key")).Return(true, nil),
		)

		actual, err := upload.NewRetryUploaderBackoff(u, fastBackoff).Exists(context.Background(), "key")
		require.NoError(t, err)
		assert.True(t, actual)
	})
}

func TestHashed(t *testing.T) {
	const content = "hello"
	const key = "2c/2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824.js"

	t.Run("Uploads", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().Exists(gomock.Any(), key).Return(false, nil)
		u.EXPECT().Upload(gomock.Any(), gomock.Any(), int64(len(content)), key, "text/javascript").Return(nil)

		actual, err := upload.Hashed(
			context.Background(),
			u,
			strings.NewReader(content),
			int64(len(content)),
			".js",
			"text/javascript",
		)
		require.NoError(t, err)
		assert.Equal(t, key, actual)
	})

	t.Run("SkipsExisting", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().Exists(gomock.Any(), key).Return(true, nil)

		actual, err := upload.Hashed(
			context.Background(),
			u,
			strings.NewReader(content),
			int64(len(content)),
			"js",
			"text/javascript",
		)
		require.NoError(t, err)
		assert.Equal(t, key, actual)
	})
}
