/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package control

import "fmt"

type ErrBucketNotFound struct {
	Bucket string
}

func (e ErrBucketNotFound) Error() string {
	return fmt.Sprintf("Bucket not found: %s", e.Bucket)
}

// ErrNoState returned when the register has not been accessed through the
// control server yet
type ErrNoState struct {
	Terminal string
	Key      string
}

func (e ErrNoState) Error() string {
	return fmt.Sprintf("No state recorded for %s.%s", e.Terminal, e.Key)
}

// ErrBadRequest returned for request parameters that can not be parsed
type ErrBadRequest struct {
	What string
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("Bad request: %s", e.What)
}
