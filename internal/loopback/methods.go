package loopback

import (
	"fmt"
	"path/filepath"

	"github.com/cryguy/rtcbridge/internal/core"
	"github.com/cryguy/rtcbridge/internal/invoker"
)

func (e *Engine) engineMethods() invoker.Registry {
	reg := invoker.Registry{}

	reg.WithArgs("create", func(args core.Args, done core.Completion) {
		cfg, _ := args["config"].(map[string]any)
		if appID, _ := cfg["appId"].(string); appID == "" {
			done.Fail("InvalidArgs", "appId is required")
			return
		}
		e.mu.Lock()
		e.created = true
		if e.currentWB == "" {
			e.currentWB = DefaultWhiteboardID
		}
		if e.whiteboards[e.currentWB] == nil {
			e.whiteboards[e.currentWB] = &board{page: 1, pages: 1}
		}
		e.mu.Unlock()
		ok(done)
	})
	reg.WithArgs("updateConfig", func(_ core.Args, done core.Completion) {
		e.mu.Lock()
		joined := e.joined
		e.mu.Unlock()
		if joined {
			code(done, core.InvalidState)
			return
		}
		ok(done)
	})
	reg.NoArgs("destroy", func(done core.Completion) {
		e.mu.Lock()
		e.created, e.joined = false, false
		e.channelID, e.userID, e.currentWB = "", "", ""
		e.whiteboards = make(map[string]*board)
		e.annotations = make(map[string]bool)
		e.streams = make(map[int]string)
		e.mu.Unlock()
		ok(done)
	})
	reg.WithArgs("setParameters", func(args core.Args, done core.Completion) {
		p, err := invoker.String(args, "param")
		if err != nil {
			invalid(done, err)
			return
		}
		e.mu.Lock()
		e.params = append(e.params, p)
		e.mu.Unlock()
		ok(done)
	})

	reg.WithArgs("joinChannel", func(args core.Args, done core.Completion) {
		token, _ := args["token"].(string)
		channelID, err := invoker.String(args, "channelId")
		if err != nil {
			invalid(done, err)
			return
		}
		userID, err := invoker.String(args, "userId")
		if err != nil {
			invalid(done, err)
			return
		}
		e.mu.Lock()
		created := e.created
		e.mu.Unlock()
		if !created {
			code(done, core.NotInitialized)
			return
		}
		if token == "" {
			done.Fail("AuthFailed", "token rejected")
			return
		}
		e.mu.Lock()
		e.joined, e.channelID, e.userID = true, channelID, userID
		wb := e.currentWB
		e.mu.Unlock()

		ok(done)
		e.Emit(core.Engine, "onChannelJoinConfirm", "", int(core.OK))
		e.Emit(core.Engine, "onWhiteboardAvailable", "")
		e.Emit(core.Engine, "onWhiteboardStartWithId", "", wb)
	})
	reg.NoArgs("leaveChannel", func(done core.Completion) {
		e.mu.Lock()
		was := e.joined
		e.joined = false
		e.mu.Unlock()
		ok(done)
		if was {
			e.Emit(core.Engine, "onChannelLeaveIndication", "", int(core.OK))
		}
	})

	reg.NoArgs("startAudio", func(done core.Completion) {
		if !e.requireJoined(done) {
			return
		}
		e.mu.Lock()
		e.audio = true
		e.mu.Unlock()
		ok(done)
		e.Emit(core.Engine, "onAudioStartResult", "", int(core.OK))
	})
	reg.NoArgs("stopAudio", func(done core.Completion) {
		e.mu.Lock()
		e.audio = false
		e.mu.Unlock()
		ok(done)
	})
	reg.WithArgs("startVideo", func(args core.Args, done core.Completion) {
		if _, err := invoker.View(args); err != nil {
			invalid(done, err)
			return
		}
		e.mu.Lock()
		e.video = true
		e.mu.Unlock()
		ok(done)
		e.Emit(core.Engine, "onVideoStartResult", "", int(core.OK))
	})
	reg.NoArgs("stopVideo", func(done core.Completion) {
		e.mu.Lock()
		e.video = false
		e.mu.Unlock()
		ok(done)
	})
	reg.WithArgs("startPreview", func(args core.Args, done core.Completion) {
		if _, err := invoker.View(args); err != nil {
			invalid(done, err)
			return
		}
		ok(done)
	})

	subscribe := func(event string, surface bool) func(core.Args, core.Completion) {
		return func(args core.Args, done core.Completion) {
			userID, err := invoker.String(args, "userId")
			if err != nil {
				invalid(done, err)
				return
			}
			if surface {
				if _, err := invoker.View(args); err != nil {
					invalid(done, err)
					return
				}
			}
			if !e.requireJoined(done) {
				return
			}
			ok(done)
			e.Emit(core.Engine, event, "", userID, int(core.OK))
		}
	}
	reg.WithArgs("subscribeAudio", subscribe("onUserAudioSubscribe", false))
	reg.WithArgs("subscribeVideo", subscribe("onUserVideoSubscribe", true))
	reg.WithArgs("subscribeScreen", subscribe("onUserScreenSubscribe", true))

	reg.NoArgs("startScreen", func(done core.Completion) {
		ok(done)
		e.Emit(core.Engine, "onScreenStartResult", "", int(core.OK))
	})
	reg.WithArgs("startScreen", func(_ core.Args, done core.Completion) {
		ok(done)
		e.Emit(core.Engine, "onScreenStartResult", "", int(core.OK))
	})

	reg.NoArgs("muteAudio", e.setFlag(&e.muted, true))
	reg.NoArgs("unmuteAudio", e.setFlag(&e.muted, false))
	reg.WithArgs("setMicrophoneMuteStatus", e.setFlagArg(&e.muted, "enable"))
	reg.WithArgs("setLoudspeakerStatus", e.setFlagArg(&e.speaker, "enable"))
	reg.NoArgs("isEnabledLoudspeaker", e.getFlag(&e.speaker))
	reg.NoArgs("isFrontCamera", e.getFlag(&e.front))
	reg.NoArgs("switchCamera", func(done core.Completion) {
		e.mu.Lock()
		e.front = !e.front
		e.mu.Unlock()
		ok(done)
	})
	reg.WithArgs("getCameraDeviceId", func(args core.Args, done core.Completion) {
		front, err := invoker.Bool(args, "frontCamera", true)
		if err != nil {
			invalid(done, err)
			return
		}
		if front {
			done.Succeed("camera-front")
			return
		}
		done.Succeed("camera-back")
	})
	reg.WithArgs("getAudioDeviceVolume", func(_ core.Args, done core.Completion) { done.Succeed(128) })
	reg.NoArgs("getRecordingLevel", func(done core.Completion) { done.Succeed(0) })
	reg.NoArgs("getPlayoutLevel", func(done core.Completion) { done.Succeed(0) })

	reg.WithArgs("snapshotVideo", func(args core.Args, done core.Completion) {
		dir, err := invoker.String(args, "outputDir")
		if err != nil {
			invalid(done, err)
			return
		}
		userID, _ := args["userId"].(string)
		ok(done)
		e.Emit(core.Engine, "onVideoSnapshotCompleted", "", true, userID, filepath.Join(dir, userID+".jpg"))
	})

	reg.WithArgs("setOption", func(args core.Args, done core.Completion) {
		if _, has := args["type"]; !has {
			invalid(done, errorf("setOption without type"))
			return
		}
		ok(done)
	})

	reg.NoArgs("whiteboardEngine", func(done core.Completion) {
		e.mu.Lock()
		id := e.currentWB
		e.mu.Unlock()
		if id == "" {
			done.Succeed(nil)
			return
		}
		done.Succeed(id)
	})
	reg.WithArgs("switchWhiteboardEngine", func(args core.Args, done core.Completion) {
		id, err := invoker.String(args, "whiteboardId")
		if err != nil || id == "" {
			invalid(done, fmt.Errorf("switchWhiteboardEngine: %v", err))
			return
		}
		e.mu.Lock()
		if e.whiteboards[id] == nil {
			e.whiteboards[id] = &board{page: 1, pages: 1}
		}
		e.currentWB = id
		e.mu.Unlock()
		ok(done)
	})

	okMethods(reg,
		[]string{"stopScreen", "muteVideo", "unmuteVideo", "stopPreview", "stopAudioDump",
			"videoStreamManager", "annotationManager", "messageService", "networkManager"},
		[]string{"unsubscribeAudio", "unsubscribeVideo", "unsubscribeScreen", "updateScreenScaling",
			"updateScreenScalingWithFocus", "updateScreenMoving", "setAudioDeviceVolume",
			"startAudioDumpWithFilePath", "sendFeedback"})
	return reg
}

func (e *Engine) setFlag(flag *bool, v bool) func(core.Completion) {
	return func(done core.Completion) {
		e.mu.Lock()
		*flag = v
		e.mu.Unlock()
		ok(done)
	}
}

func (e *Engine) setFlagArg(flag *bool, key string) func(core.Args, core.Completion) {
	return func(args core.Args, done core.Completion) {
		v, err := invoker.Bool(args, key, false)
		if err != nil {
			invalid(done, err)
			return
		}
		e.mu.Lock()
		*flag = v
		e.mu.Unlock()
		ok(done)
	}
}

func (e *Engine) getFlag(flag *bool) func(core.Completion) {
	return func(done core.Completion) {
		e.mu.Lock()
		v := *flag
		e.mu.Unlock()
		done.Succeed(v)
	}
}

func (e *Engine) whiteboardMethods(id string) invoker.Registry {
	reg := invoker.Registry{}

	// withBoard runs fn with the board locked and reports the new page
	// position when fn changed it.
	withBoard := func(done core.Completion, fn func(b *board) core.ResultCode) {
		e.mu.Lock()
		b := e.whiteboards[id]
		if b == nil {
			e.mu.Unlock()
			code(done, core.NotExist)
			return
		}
		page, pages := b.page, b.pages
		rc := fn(b)
		moved := b.page != page || b.pages != pages
		page, pages = b.page, b.pages
		e.mu.Unlock()
		code(done, rc)
		if moved {
			e.Emit(core.Whiteboard, "onPageNumberChanged", id, page, pages)
		}
	}

	reg.WithArgs("open", func(args core.Args, done core.Completion) {
		if _, err := invoker.View(args); err != nil {
			invalid(done, err)
			return
		}
		ok(done)
		e.Emit(core.Whiteboard, "onStatusSynced", id)
	})
	reg.NoArgs("getCurrentWhiteboardId", func(done core.Completion) { done.Succeed(id) })
	reg.WithArgs("setToolType", func(args core.Args, done core.Completion) {
		t, err := invoker.Int(args, "type")
		if err != nil {
			invalid(done, err)
			return
		}
		withBoard(done, func(b *board) core.ResultCode {
			b.tool = t
			return core.OK
		})
	})
	reg.NoArgs("getToolType", func(done core.Completion) {
		e.mu.Lock()
		b := e.whiteboards[id]
		tool := 0
		if b != nil {
			tool = b.tool
		}
		e.mu.Unlock()
		done.Succeed(tool)
	})
	reg.NoArgs("getCurrentPageNumber", func(done core.Completion) {
		e.mu.Lock()
		page := 0
		if b := e.whiteboards[id]; b != nil {
			page = b.page
		}
		e.mu.Unlock()
		done.Succeed(page)
	})
	reg.NoArgs("getTotalNumberOfPages", func(done core.Completion) {
		e.mu.Lock()
		pages := 0
		if b := e.whiteboards[id]; b != nil {
			pages = b.pages
		}
		e.mu.Unlock()
		done.Succeed(pages)
	})
	reg.WithArgs("addPage", func(args core.Args, done core.Completion) {
		auto, _ := invoker.Bool(args, "autoSwitch", true)
		withBoard(done, func(b *board) core.ResultCode {
			b.pages++
			if auto {
				b.page = b.pages
			}
			return core.OK
		})
	})
	reg.WithArgs("insertPage", func(args core.Args, done core.Completion) {
		n, err := invoker.Int(args, "pageNo")
		if err != nil {
			invalid(done, err)
			return
		}
		auto, _ := invoker.Bool(args, "autoSwitch", true)
		withBoard(done, func(b *board) core.ResultCode {
			if n < 1 || n > b.pages+1 {
				return core.InvalidIndex
			}
			b.pages++
			if auto {
				b.page = n
			}
			return core.OK
		})
	})
	reg.WithArgs("removePage", func(args core.Args, done core.Completion) {
		n, err := invoker.Int(args, "pageNo")
		if err != nil {
			invalid(done, err)
			return
		}
		withBoard(done, func(b *board) core.ResultCode {
			if n < 1 || n > b.pages || b.pages == 1 {
				return core.InvalidIndex
			}
			b.pages--
			if b.page > b.pages {
				b.page = b.pages
			}
			return core.OK
		})
	})
	reg.WithArgs("gotoPage", func(args core.Args, done core.Completion) {
		n, err := invoker.Int(args, "pageNo")
		if err != nil {
			invalid(done, err)
			return
		}
		withBoard(done, func(b *board) core.ResultCode {
			if n < 1 || n > b.pages {
				return core.InvalidIndex
			}
			b.page = n
			return core.OK
		})
	})
	reg.NoArgs("nextPage", func(done core.Completion) {
		withBoard(done, func(b *board) core.ResultCode {
			if b.page >= b.pages {
				return core.InvalidIndex
			}
			b.page++
			return core.OK
		})
	})
	reg.NoArgs("prevPage", func(done core.Completion) {
		withBoard(done, func(b *board) core.ResultCode {
			if b.page <= 1 {
				return core.InvalidIndex
			}
			b.page--
			return core.OK
		})
	})
	reg.NoArgs("undo", func(done core.Completion) {
		withBoard(done, func(b *board) core.ResultCode {
			b.undo++
			return core.OK
		})
	})

	message := func(args core.Args, done core.Completion) {
		msg, err := invoker.Bytes(args, "message")
		if err != nil {
			invalid(done, err)
			return
		}
		if !e.requireJoined(done) {
			return
		}
		ok(done)
		e.Emit(core.Whiteboard, "onMessage", id, e.selfID(), msg)
	}
	reg.WithArgs("sendMessage", message)
	reg.WithArgs("broadcastMessage", message)

	okMethods(reg,
		[]string{"close", "leave", "stop", "redo", "nextStep", "prevStep", "startShareVision",
			"stopShareVision", "startFollowVision", "stopFollowVision", "syncVision",
			"enumerateFiles", "getCurrentFileId"},
		[]string{"setRoleType", "setLineWidth", "setFillType", "setFillColor", "setForegroundColor",
			"setBackgroundColor", "setFontStyle", "setFontSize", "addStamp", "setStamp",
			"setBackgroundImageScalingMode", "setBackgroundImage", "setBackgroundImageWithPage",
			"clearContents", "clearUserContents", "setCurrentScaleFactor", "snapshot",
			"addImageFile", "setOption"})
	return reg
}

func (e *Engine) annotationManagerMethods() invoker.Registry {
	reg := invoker.Registry{}
	annotation := func(prefix string, withStream bool) func(core.Args, core.Completion) {
		return func(args core.Args, done core.Completion) {
			userID, err := invoker.String(args, "userId")
			if err != nil {
				invalid(done, err)
				return
			}
			id := prefix + "-" + userID
			if withStream {
				stream, err := invoker.Int(args, "streamId")
				if err != nil {
					invalid(done, err)
					return
				}
				id = fmt.Sprintf("%s-%d", id, stream)
			}
			e.mu.Lock()
			e.annotations[id] = true
			e.mu.Unlock()
			done.Succeed(id)
		}
	}
	reg.WithArgs("getVideoAnnotation", annotation("video", true))
	reg.WithArgs("getShareAnnotation", annotation("share", false))
	return reg
}

func (e *Engine) annotationMethods(id string) invoker.Registry {
	reg := invoker.Registry{}
	reg.WithArgs("startAnnotation", func(args core.Args, done core.Completion) {
		if _, err := invoker.View(args); err != nil {
			invalid(done, err)
			return
		}
		ok(done)
	})
	reg.WithArgs("snapshot", func(args core.Args, done core.Completion) {
		dir, err := invoker.String(args, "outputDir")
		if err != nil {
			invalid(done, err)
			return
		}
		ok(done)
		e.Emit(core.Annotation, "onSnapshotComplete", id, true, filepath.Join(dir, id+".png"))
	})
	okMethods(reg,
		[]string{"stopAnnotation", "undo", "redo", "clearContents"},
		[]string{"setVisible", "setRoleType", "setToolType", "setLineWidth", "setColor",
			"setFontStyle", "setFontSize", "clearUserContents"})
	return reg
}

func (e *Engine) videoStreamMethods() invoker.Registry {
	reg := invoker.Registry{}
	reg.WithArgs("createVideoStream", func(args core.Args, done core.Completion) {
		device, err := invoker.String(args, "deviceId")
		if err != nil {
			invalid(done, err)
			return
		}
		e.mu.Lock()
		e.nextStream++
		id := e.nextStream
		e.streams[id] = device
		e.mu.Unlock()
		done.Succeed(id)
	})
	// stream runs fn for an existing stream id, answering NotExist otherwise.
	stream := func(fn func(id int, args core.Args, done core.Completion)) func(core.Args, core.Completion) {
		return func(args core.Args, done core.Completion) {
			id, err := invoker.Int(args, "streamId")
			if err != nil {
				invalid(done, err)
				return
			}
			e.mu.Lock()
			_, exists := e.streams[id]
			e.mu.Unlock()
			if !exists {
				code(done, core.NotExist)
				return
			}
			fn(id, args, done)
		}
	}
	okStream := stream(func(_ int, _ core.Args, done core.Completion) { ok(done) })

	reg.WithArgs("destroyVideoStream", stream(func(id int, _ core.Args, done core.Completion) {
		e.mu.Lock()
		delete(e.streams, id)
		e.mu.Unlock()
		ok(done)
	}))
	reg.WithArgs("setCaptureDevice", stream(func(id int, args core.Args, done core.Completion) {
		device, err := invoker.String(args, "deviceId")
		if err != nil {
			invalid(done, err)
			return
		}
		e.mu.Lock()
		e.streams[id] = device
		e.mu.Unlock()
		ok(done)
	}))
	reg.WithArgs("getCaptureDevice", stream(func(id int, _ core.Args, done core.Completion) {
		e.mu.Lock()
		device := e.streams[id]
		e.mu.Unlock()
		done.Succeed(device)
	}))
	reg.WithArgs("startVideoWithStreamId", stream(func(_ int, args core.Args, done core.Completion) {
		if _, err := invoker.View(args); err != nil {
			invalid(done, err)
			return
		}
		ok(done)
	}))
	reg.WithArgs("stopVideo", okStream)
	reg.WithArgs("muteVideo", okStream)
	reg.WithArgs("unmuteVideo", okStream)
	okMethods(reg, nil, []string{"subscribeVideoWithStreamId", "unsubscribeVideo", "snapshotVideo"})
	return reg
}

func (e *Engine) messageMethods() invoker.Registry {
	reg := invoker.Registry{}
	reg.WithArgs("sendMessage", func(args core.Args, done core.Completion) {
		msg, err := invoker.Bytes(args, "message")
		if err != nil {
			invalid(done, err)
			return
		}
		to, err := invoker.String(args, "userId")
		if err != nil {
			invalid(done, err)
			return
		}
		if !e.requireJoined(done) {
			return
		}
		ok(done)
		if self := e.selfID(); to == self {
			e.Emit(core.MessageService, "onUserMessage", "", self, msg)
		}
	})
	reg.WithArgs("broadcastMessage", func(args core.Args, done core.Completion) {
		msg, err := invoker.Bytes(args, "message")
		if err != nil {
			invalid(done, err)
			return
		}
		sendBack, _ := invoker.Bool(args, "sendBack", false)
		if !e.requireJoined(done) {
			return
		}
		ok(done)
		if sendBack {
			e.Emit(core.MessageService, "onUserMessage", "", e.selfID(), msg)
		}
	})
	return reg
}

func (e *Engine) networkMethods() invoker.Registry {
	reg := invoker.Registry{}
	reg.WithArgs("startNetworkTest", func(args core.Args, done core.Completion) {
		if _, err := invoker.String(args, "token"); err != nil {
			invalid(done, err)
			return
		}
		ok(done)
		e.Emit(core.NetworkManager, "onNetworkTestComplete", "", map[string]any{
			"rating": 4,
			"txLoss": 0,
			"rxLoss": 0,
			"rtt":    20,
		})
	})
	reg.NoArgs("stopNetworkTest", ok)
	return reg
}
