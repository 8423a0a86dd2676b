package composer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/taporibrain/internal/media"
	"github.com/zhouzirui/taporibrain/internal/service/composer"
)

func newComposer(t *testing.T, onVoice composer.VoiceHandler) (*composer.Composer, *media.PreviewRegistry) {
	t.Helper()
	previews := media.NewPreviewRegistry()
	c := composer.New(composer.Config{Previews: previews, OnVoice: onVoice})
	t.Cleanup(c.Close)
	return c, previews
}

func deviceFor(stream media.Stream) media.Device {
	return media.DeviceFunc(func(context.Context) (media.Stream, error) {
		return stream, nil
	})
}

func TestCanSend(t *testing.T) {
	c, _ := newComposer(t, nil)
	assert.False(t, c.CanSend())

	c.SetText("   ")
	assert.False(t, c.CanSend(), "whitespace only")

	c.AddFile("notes.pdf", "application/pdf", []byte("%PDF"))
	assert.True(t, c.CanSend(), "one attachment is enough")

	c.SetDisabled(true)
	assert.False(t, c.CanSend())
	_, ok := c.Send()
	assert.False(t, ok)

	c.SetDisabled(false)
	assert.True(t, c.CanSend())
}

func TestAddFileClassifiesAndPreviewsImages(t *testing.T) {
	c, previews := newComposer(t, nil)

	img := c.AddFile("cat.png", "image/png", []byte("png"))
	doc := c.AddFile("notes.txt", "text/plain", []byte("hello"))

	assert.Equal(t, "image", string(img.Kind))
	assert.NotEmpty(t, img.PreviewURL)
	assert.Equal(t, "file", string(doc.Kind))
	assert.Empty(t, doc.PreviewURL)
	assert.EqualValues(t, 5, doc.Size)
	assert.Equal(t, 1, previews.Live())
}

func TestRemoveAttachmentReleasesOnlyItsPreview(t *testing.T) {
	c, previews := newComposer(t, nil)
	first := c.AddFile("a.png", "image/png", []byte("a"))
	second := c.AddFile("b.png", "image/png", []byte("b"))
	require.Equal(t, 2, previews.Live())

	require.NoError(t, c.RemoveAttachment(0))

	assert.Equal(t, 1, previews.Live())
	_, err := previews.Open(first.PreviewURL[len(media.PreviewPathPrefix):])
	assert.ErrorIs(t, err, media.ErrPreviewReleased)
	_, err = previews.Open(second.PreviewURL[len(media.PreviewPathPrefix):])
	assert.NoError(t, err)

	remaining := c.Attachments()
	require.Len(t, remaining, 1)
	assert.Equal(t, "b.png", remaining[0].Name)
	assert.Equal(t, 0, remaining[0].Index)

	assert.ErrorIs(t, c.RemoveAttachment(5), composer.ErrAttachmentIndex)
}

func TestSendClearsBuffersAndReleasesPreviews(t *testing.T) {
	c, previews := newComposer(t, nil)
	c.SetText("  look at this  ")
	c.AddFile("a.png", "image/png", []byte("a"))
	c.AddFile("b.txt", "text/plain", []byte("b"))

	draft, ok := c.Send()
	require.True(t, ok)
	assert.Equal(t, "look at this", draft.Text)
	require.Len(t, draft.Files, 2)
	assert.Equal(t, "a.png", draft.Files[0].Name)
	assert.Equal(t, []byte("b"), draft.Files[1].Data)

	assert.Empty(t, c.Text())
	assert.Empty(t, c.Attachments())
	assert.Equal(t, 0, previews.Live())
	assert.False(t, c.CanSend())
}

func TestRecordingRoundTrip(t *testing.T) {
	var got []media.Audio
	c, _ := newComposer(t, func(_ context.Context, audio media.Audio) {
		got = append(got, audio)
	})

	stream := media.NewChunkStream([]string{media.FormatMP4}, nil)
	require.True(t, c.StartRecording(context.Background(), deviceFor(stream)))
	assert.Equal(t, composer.StateRecording, c.Recording())

	assert.False(t, c.StartRecording(context.Background(), deviceFor(stream)), "already recording")

	stream.Push([]byte("ab"))
	stream.Push([]byte("cd"))
	c.StopRecording(context.Background())

	assert.Equal(t, composer.StateIdle, c.Recording())
	assert.True(t, stream.Closed())
	require.Len(t, got, 1)
	assert.Equal(t, "voice-message.mp4", got[0].Name)
	assert.Equal(t, media.FormatMP4, got[0].ContentType)
	assert.Equal(t, []byte("abcd"), got[0].Data)

	c.StopRecording(context.Background())
	assert.Len(t, got, 1, "stop while idle is a no-op")
}

func TestRecordingFallsBackToDefaultFormat(t *testing.T) {
	var got media.Audio
	c, _ := newComposer(t, func(_ context.Context, audio media.Audio) { got = audio })

	stream := media.NewChunkStream(nil, nil)
	require.True(t, c.StartRecording(context.Background(), deviceFor(stream)))
	stream.Push([]byte("x"))
	c.StopRecording(context.Background())

	assert.Equal(t, media.FormatWebM, got.ContentType)
	assert.Equal(t, "voice-message.webm", got.Name)
}

func TestRecordingPermissionDenied(t *testing.T) {
	called := false
	c, _ := newComposer(t, func(context.Context, media.Audio) { called = true })

	denied := media.DeviceFunc(func(context.Context) (media.Stream, error) {
		return nil, media.ErrPermissionDenied
	})
	assert.False(t, c.StartRecording(context.Background(), denied))
	assert.Equal(t, composer.StateIdle, c.Recording())

	c.StopRecording(context.Background())
	assert.False(t, called)
}

func TestCloseReleasesMicrophoneWithoutEmitting(t *testing.T) {
	called := false
	c, previews := newComposer(t, func(context.Context, media.Audio) { called = true })
	c.AddFile("a.png", "image/png", []byte("a"))

	stream := media.NewChunkStream([]string{media.FormatWebM}, nil)
	require.True(t, c.StartRecording(context.Background(), deviceFor(stream)))
	stream.Push([]byte("x"))

	c.Close()

	assert.True(t, stream.Closed())
	assert.False(t, called)
	assert.Equal(t, 0, previews.Live())
	assert.Equal(t, composer.StateIdle, c.Recording())
}

func TestCancelRecordingDiscardsAudio(t *testing.T) {
	called := false
	c, _ := newComposer(t, func(context.Context, media.Audio) { called = true })

	stream := media.NewChunkStream([]string{media.FormatWebM}, nil)
	require.True(t, c.StartRecording(context.Background(), deviceFor(stream)))
	stream.Push([]byte("x"))

	c.CancelRecording()
	assert.True(t, stream.Closed())
	assert.Equal(t, composer.StateIdle, c.Recording())

	c.StopRecording(context.Background())
	assert.False(t, called)
}

func TestSubscribeReceivesViews(t *testing.T) {
	c, _ := newComposer(t, nil)

	var views []composer.View
	unsubscribe := c.Subscribe(func(v composer.View) { views = append(views, v) })

	c.SetText("hi")
	c.SetDisabled(true)
	unsubscribe()
	c.SetText("ignored")

	require.Len(t, views, 2)
	assert.True(t, views[0].CanSend)
	assert.Equal(t, "hi", views[0].Text)
	assert.True(t, views[1].Disabled)
	assert.False(t, views[1].CanSend)
}
