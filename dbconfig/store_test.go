// Copyright © 2016 Abcum Ltd
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dbconfig

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadMissingFileYieldsDefault(t *testing.T) {

	Convey("Given a directory with no config.json", t, func() {
		dir := t.TempDir()

		store, err := Load(dir)
		So(err, ShouldBeNil)

		Convey("Get returns the all-false default", func() {
			cfg := store.Get()
			So(cfg.BlockReads, ShouldBeFalse)
			So(cfg.BlockWrites, ShouldBeFalse)
			So(cfg.BlockReason, ShouldEqual, "")
		})
	})
}

func TestLoadRejectsMalformedContent(t *testing.T) {

	Convey("Given a config.json that isn't valid JSON", t, func() {
		dir := t.TempDir()
		err := os.WriteFile(filepath.Join(dir, configFile), []byte("not json"), 0o644)
		So(err, ShouldBeNil)

		_, err = Load(dir)

		Convey("Load fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestStoreRoundTrip(t *testing.T) {

	Convey("Given a fresh store", t, func() {
		dir := t.TempDir()
		store, err := Load(dir)
		So(err, ShouldBeNil)

		cfg := Config{BlockWrites: true, BlockReason: "maintenance"}

		Convey("Store then Get reflects the new value immediately", func() {
			So(store.Store(cfg), ShouldBeNil)
			So(store.Get(), ShouldResemble, cfg)
		})

		Convey("A fresh Load of the same directory observes the persisted value", func() {
			So(store.Store(cfg), ShouldBeNil)

			reloaded, err := Load(dir)
			So(err, ShouldBeNil)
			So(reloaded.Get(), ShouldResemble, cfg)
		})

		Convey("No staging file is left behind after a successful store", func() {
			So(store.Store(cfg), ShouldBeNil)
			_, err := os.Stat(filepath.Join(dir, configFile+stagingSuffix))
			So(os.IsNotExist(err), ShouldBeTrue)
		})
	})
}
