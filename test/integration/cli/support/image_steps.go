package support

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/cardcrop/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

func (testCtx *TestContext) registerImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a "([^"]*)" card scene saved as "([^"]*)"$`, testCtx.aCardSceneSavedAs)
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImage)
	sc.Step(`^a PDF "([^"]*)" with the "([^"]*)" card scene on each of (\d+) pages$`, testCtx.aPDFWithScenes)
	sc.Step(`^a config file "([^"]*)" with:$`, testCtx.aConfigFileWith)
}

// aCardSceneSavedAs renders a named synthetic scene into the working directory.
func (testCtx *TestContext) aCardSceneSavedAs(scene, name string) error {
	s, ok := testutil.SceneByName(scene)
	if !ok {
		return fmt.Errorf("unknown scene %q", scene)
	}
	path := testCtx.path(name)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return imaging.Save(testutil.GenerateScene(s.Config), path)
}

func (testCtx *TestContext) aCorruptImage(name string) error {
	path := testCtx.path(name)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("this is not an image"), 0o600)
}

// aPDFWithScenes embeds the same scene once per page.
func (testCtx *TestContext) aPDFWithScenes(name, scene string, pages int) error {
	s, ok := testutil.SceneByName(scene)
	if !ok {
		return fmt.Errorf("unknown scene %q", scene)
	}
	dir, err := os.MkdirTemp(testCtx.WorkDir, "pdf-src-*")
	if err != nil {
		return err
	}
	img := testutil.GenerateScene(s.Config)
	var files []string
	for i := 0; i < pages; i++ {
		p := filepath.Join(dir, fmt.Sprintf("page%d.png", i+1))
		if err := imaging.Save(img, p); err != nil {
			return err
		}
		files = append(files, p)
	}
	return api.ImportImagesFile(files, testCtx.path(name), nil, nil)
}

func (testCtx *TestContext) aConfigFileWith(name string, body *godog.DocString) error {
	return os.WriteFile(testCtx.path(name), []byte(body.Content), 0o600)
}
