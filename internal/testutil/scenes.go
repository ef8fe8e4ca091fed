package testutil

import (
	"image"
	"image/color"
	"testing"
)

// Scene is a named synthetic photograph with the outcome a detector should
// reach on it.
type Scene struct {
	Name   string
	Config SceneConfig
	Cards  int // expected crops in multi-card mode
}

// Scenes returns the standard synthetic scenes.
func Scenes() []Scene {
	straight := DefaultSceneConfig()

	rotated := DefaultSceneConfig()
	rotated.Cards[0].Rect = image.Rect(200, 150, 600, 410)
	rotated.Cards[0].Rotation = 12

	noisy := DefaultSceneConfig()
	noisy.Noise = 0.04

	two := DefaultSceneConfig()
	two.Cards = []CardSpec{
		{Rect: image.Rect(50, 50, 350, 250), Color: color.Gray{Y: 220}, Label: "ONE"},
		{Rect: image.Rect(450, 320, 750, 540), Color: color.Gray{Y: 220}, Label: "TWO"},
	}

	blank := DefaultSceneConfig()
	blank.Cards = nil

	return []Scene{
		{Name: "straight", Config: straight, Cards: 1},
		{Name: "rotated", Config: rotated, Cards: 1},
		{Name: "noisy", Config: noisy, Cards: 1},
		{Name: "two_cards", Config: two, Cards: 2},
		{Name: "blank", Config: blank, Cards: 0},
	}
}

// SceneByName returns the named standard scene.
func SceneByName(name string) (Scene, bool) {
	for _, s := range Scenes() {
		if s.Name == name {
			return s, true
		}
	}
	return Scene{}, false
}

// WriteScenes renders every standard scene into dir as <name>.png and
// returns the paths in Scenes order.
func WriteScenes(t *testing.T, dir string) []string {
	t.Helper()
	scenes := Scenes()
	paths := make([]string, len(scenes))
	for i, s := range scenes {
		paths[i] = WriteScene(t, dir, s.Name+".png", s.Config)
	}
	return paths
}
