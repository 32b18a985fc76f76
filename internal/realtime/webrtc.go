package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/wave/molly/internal/fetch"
)

// EventsChannelLabel is the data channel the server uses for JSON events.
const EventsChannelLabel = "oai-events"

// iceGatherTimeout bounds local candidate gathering before the offer is sent.
const iceGatherTimeout = 10 * time.Second

// WebRTCChannel is a Channel over a peer connection. Events travel on the
// oai-events data channel; the agent's audio track is received and discarded.
type WebRTCChannel struct {
	*eventBuffer
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	closeOnce sync.Once
}

// WebRTCOptions extends Options with peer connection settings.
type WebRTCOptions struct {
	Options
	ICEServers []webrtc.ICEServer
	// IncludeLoopback allows loopback candidates, for same-host peers in tests.
	IncludeLoopback bool
	HTTPClient      *http.Client
}

// DialWebRTC opens a realtime conversation over WebRTC. The SDP offer is
// posted to the realtime endpoint and the response body is the answer.
func DialWebRTC(ctx context.Context, opts WebRTCOptions) (*WebRTCChannel, error) {
	logger := opts.logger()

	settingEngine := webrtc.SettingEngine{}
	if opts.IncludeLoopback {
		settingEngine.SetIncludeLoopbackCandidate(true)
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: opts.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	ch := &WebRTCChannel{
		eventBuffer: newEventBuffer(DefaultEventBuffer),
		pc:          pc,
	}

	fail := func(err error) (*WebRTCChannel, error) {
		ch.finish(err)
		_ = pc.Close()
		return nil, err
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return fail(fmt.Errorf("adding audio transceiver: %w", err))
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Read(buf); err != nil {
				return
			}
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed:
			logger.Printf("[realtime] peer connection failed")
			ch.finish(errors.New("peer connection failed"))
		case webrtc.PeerConnectionStateClosed:
			ch.finish(nil)
		}
	})

	dc, err := pc.CreateDataChannel(EventsChannelLabel, nil)
	if err != nil {
		return fail(fmt.Errorf("creating data channel: %w", err))
	}
	ch.dc = dc

	dc.OnOpen(func() {
		ch.emit(Opened{})
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		event, err := Decode(msg.Data)
		if err != nil {
			logger.Printf("[realtime] dropping undecodable server event: %v", err)
			return
		}
		ch.emit(event)
	})
	dc.OnClose(func() {
		ch.finish(nil)
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fail(fmt.Errorf("creating SDP offer: %w", err))
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fail(fmt.Errorf("setting local description: %w", err))
	}

	// Wait for ICE gathering to complete (vanilla ICE).
	select {
	case <-gatherComplete:
	case <-time.After(iceGatherTimeout):
		return fail(fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout))
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	answerSDP, err := exchangeSDP(ctx, opts, pc.LocalDescription().SDP)
	if err != nil {
		return fail(err)
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answerSDP,
	}); err != nil {
		return fail(fmt.Errorf("setting remote description: %w", err))
	}

	return ch, nil
}

func exchangeSDP(ctx context.Context, opts WebRTCOptions, offerSDP string) (string, error) {
	endpoint := strings.TrimRight(opts.BaseURL, "/") + "/realtime?model=" + url.QueryEscape(opts.Model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offerSDP))
	if err != nil {
		return "", fmt.Errorf("creating SDP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+opts.APIKey)
	req.Header.Set("Content-Type", "application/sdp")

	var fetchOpts *fetch.Options
	if opts.HTTPClient != nil {
		fetchOpts = &fetch.Options{Client: opts.HTTPClient}
	}
	result, err := fetch.Do(req, fetchOpts)
	if err != nil {
		return "", fmt.Errorf("SDP exchange: %w", err)
	}
	if len(strings.TrimSpace(string(result.Body))) == 0 {
		return "", errors.New("SDP exchange: empty answer")
	}
	return string(result.Body), nil
}

// Send writes a client event on the data channel.
func (c *WebRTCChannel) Send(_ context.Context, event any) error {
	if c.closed() {
		return ErrClosed
	}
	if c.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("data channel not open (%s)", c.dc.ReadyState())
	}
	data, err := jsonMarshal(event)
	if err != nil {
		return err
	}
	return c.dc.SendText(string(data))
}

// Close ends the conversation.
func (c *WebRTCChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.finish(nil)
		err = c.pc.Close()
	})
	return err
}
