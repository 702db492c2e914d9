/*
 * Copyright (c) 2025, the fake-gpu authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package os

import "os"

//go:generate go run -v go.uber.org/mock/mockgen  -destination=../../mocks/pkg/os/mock_os.go -package=os -copyright_file=../../../hack/header.txt . OS
type OS interface {
	Getenv(key string) string
	Hostname() (string, error)
	IsNotExist(err error) bool
	MkdirAll(path string, perm os.FileMode) error
	ReadFile(name string) ([]byte, error)
	Remove(name string) error
	RemoveAll(path string) error
	Stat(name string) (os.FileInfo, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
}

type RealOS struct{}

func (RealOS) Getenv(key string) string {
	return os.Getenv(key)
}

func (RealOS) Hostname() (string, error) {
	return os.Hostname()
}

func (RealOS) IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

func (RealOS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealOS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (RealOS) Remove(name string) error {
	return os.Remove(name)
}

func (RealOS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (RealOS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (RealOS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}
